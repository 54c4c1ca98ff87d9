package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/web3-frozen/market-recorder/internal/retry"
)

const userAgent = "market-recorder/1.0"

// Deps are shared by every source: one HTTP client, one outbound rate
// limiter and one retrier.
type Deps struct {
	Client  *http.Client
	Limiter *rate.Limiter
	Retrier *retry.Retrier
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = NewHTTPClient(10*time.Second, "")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Retrier == nil {
		d.Retrier = retry.New(retry.DefaultAttempts, retry.DefaultDelay, d.Logger)
	}
	return d
}

// NewHTTPClient returns a client with a whole-request timeout, routed through
// proxyURL when it is not empty.
func NewHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// fetchJSON GETs url into a T through the retrier. Transport errors, non-2xx
// statuses and undecodable bodies all count as a failed attempt.
func fetchJSON[T any](ctx context.Context, d Deps, name, url string) (T, error) {
	return retry.Do(ctx, d.Retrier, name, func(ctx context.Context) (T, error) {
		var out T
		err := getJSON(ctx, d, url, &out)
		return out, err
	})
}

func getJSON(ctx context.Context, d Deps, url string, v any) error {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Package app builds the recorder from its configuration: collectors, the
// daily engine, optional integrations and the HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/web3-frozen/market-recorder/internal/cache"
	"github.com/web3-frozen/market-recorder/internal/config"
	"github.com/web3-frozen/market-recorder/internal/handler"
	"github.com/web3-frozen/market-recorder/internal/metrics"
	"github.com/web3-frozen/market-recorder/internal/middleware"
	"github.com/web3-frozen/market-recorder/internal/monitor"
	"github.com/web3-frozen/market-recorder/internal/monitor/sources"
	"github.com/web3-frozen/market-recorder/internal/retry"
	"github.com/web3-frozen/market-recorder/internal/store"
	"github.com/web3-frozen/market-recorder/internal/telegram"
	"github.com/web3-frozen/market-recorder/internal/web"
)

// LogFile ties a source to its log file and the route serving it.
type LogFile struct {
	Source string
	File   string
	Route  string
}

// LogFiles lists the recorder logs in collection order.
var LogFiles = []LogFile{
	{Source: "market_dominance", File: "market_data.json", Route: "/api/market-data"},
	{Source: "fear_greed", File: "fear_greed_data.json", Route: "/api/fear-greed-data"},
	{Source: "stablecoins", File: "stablecoins_data.json", Route: "/api/stablecoins-data"},
	{Source: "protocol_fees", File: "protocol_fees_data.json", Route: "/api/protocol-fees-data"},
}

// Connection attempts for Redis and Postgres at startup; secrets synced by
// an external operator can lag the pod start.
const (
	connectAttempts = 6
	connectDelay    = 5 * time.Second
)

type App struct {
	Config config.Config
	Engine *monitor.Engine
	Router http.Handler

	logger  *slog.Logger
	latest  cache.Latest
	archive *store.Store
	ready   map[string]handler.Pinger
}

type options struct {
	notify     monitor.NotifyFunc
	tgEndpoint string
	sleep      retry.SleepFunc
}

type Option func(*options)

// WithNotifier replaces the Telegram notifier.
func WithNotifier(fn monitor.NotifyFunc) Option {
	return func(o *options) { o.notify = fn }
}

// WithTelegramEndpoint points the Telegram notifier at another Bot API.
func WithTelegramEndpoint(endpoint string) Option {
	return func(o *options) { o.tgEndpoint = endpoint }
}

// WithRetrySleep replaces the wait between fetch attempts.
func WithRetrySleep(fn retry.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, logger: logger, ready: make(map[string]handler.Pinger)}

	if err := a.connectCache(ctx); err != nil {
		return nil, err
	}
	if err := a.connectArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}

	notify := o.notify
	if notify == nil {
		notify = a.telegramNotifier(o.tgEndpoint)
	}

	a.Engine = monitor.NewEngine(logger, notify).WithSchedule(cfg.ScheduleHour, cfg.ScheduleZone())

	deps := a.sourceDeps(o.sleep)
	srcs := map[string]monitor.Source{
		"market_dominance": sources.NewMarketDominance(deps, cfg.MarketDominanceURL),
		"fear_greed":       sources.NewFearGreed(deps, cfg.FearGreedURL),
		"stablecoins": sources.NewStablecoins(deps, cfg.StablecoinsURL,
			cfg.StablecoinTopN, sources.TotalMode(cfg.StablecoinTotalMode)),
		"protocol_fees": sources.NewProtocolFees(deps, cfg.ProtocolFeesURL),
	}
	for _, lf := range LogFiles {
		log := store.NewJSONLog(filepath.Join(cfg.DataDir, lf.File), logger)
		c := monitor.NewCollector(srcs[lf.Source], log, logger).WithCache(a.latest)
		if a.archive != nil {
			c = c.WithArchive(a.archive)
		}
		a.Engine.Register(c)
	}

	a.Router = a.routes()
	return a, nil
}

func (a *App) sourceDeps(sleep retry.SleepFunc) sources.Deps {
	cfg := a.Config
	retrier := retry.New(cfg.FetchAttempts, cfg.FetchRetryDelay, a.logger)
	if sleep != nil {
		retrier.WithSleep(sleep)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if proxy := cfg.ProxyURL(); proxy != "" {
		a.logger.Info("routing requests through proxy", "proxy", proxy)
	}
	return sources.Deps{
		Client:  sources.NewHTTPClient(cfg.RequestTimeout, cfg.ProxyURL()),
		Limiter: limiter,
		Retrier: retrier,
		Logger:  a.logger,
	}
}

func connectRetrier(logger *slog.Logger) *retry.Retrier {
	return retry.New(connectAttempts, connectDelay, logger).WithOnRetry(func(target string) {
		metrics.ConnectRetriesTotal.WithLabelValues(target).Inc()
	})
}

// connectCache uses Redis when REDIS_URL is set and an in-process map
// otherwise.
func (a *App) connectCache(ctx context.Context) error {
	if a.Config.RedisURL == "" {
		a.latest = cache.NewMemory()
		return nil
	}
	r := connectRetrier(a.logger)
	rc, err := retry.Do(ctx, r, "redis", func(context.Context) (*cache.Redis, error) {
		return cache.NewRedis(a.Config.RedisURL, a.Config.RedisPassword)
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.latest = rc
	a.ready["redis"] = rc
	a.logger.Info("redis connected for latest records")
	return nil
}

func (a *App) connectArchive(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		return nil
	}
	r := connectRetrier(a.logger)
	db, err := retry.Do(ctx, r, "postgres", func(ctx context.Context) (*store.Store, error) {
		return store.New(ctx, a.Config.DatabaseURL)
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("migrate database: %w", err)
	}
	a.archive = db
	a.ready["postgres"] = db
	a.logger.Info("database connected and migrated")
	return nil
}

// telegramNotifier returns nil when Telegram is not configured; reports are
// then only logged. When the Bot API cannot be reached at startup the
// notifier is built on the next send instead, and each failed attempt is a
// failed report.
func (a *App) telegramNotifier(endpoint string) monitor.NotifyFunc {
	cfg := a.Config
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		a.logger.Warn("telegram not configured, reports will only be logged")
		return nil
	}
	client := sources.NewHTTPClient(30*time.Second, cfg.ProxyURL())
	connect := func() (*telegram.Notifier, error) {
		return telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, client, endpoint, a.logger)
	}

	n, err := connect()
	if err == nil {
		return n.Send
	}
	a.logger.Error("telegram notifier unavailable, retrying on next report", "error", err)

	var mu sync.Mutex
	return func(text string) error {
		mu.Lock()
		defer mu.Unlock()
		if n == nil {
			var err error
			if n, err = connect(); err != nil {
				n = nil
				return fmt.Errorf("connect telegram: %w", err)
			}
			a.logger.Info("telegram notifier connected")
		}
		return n.Send(text)
	}
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(a.logger))
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(a.Config.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(a.ready))

	r.Get("/", web.Index())
	r.Handle("/static/*", web.Static())

	r.Route("/api", func(r chi.Router) {
		for _, lf := range LogFiles {
			c, _ := a.Engine.Collector(lf.Source)
			r.Get(strings.TrimPrefix(lf.Route, "/api"), handler.LogFile(c.LogPath(), a.logger))
		}
		r.Get("/latest/{source}", handler.Latest(a.Engine, a.latest, a.logger))
		r.Get("/status", handler.Status(a.Engine))
		if a.archive != nil {
			r.Get("/history/{source}", handler.History(a.Engine, a.archive, a.logger))
		}
	})
	return r
}

// Close releases the cache and the archive connection.
func (a *App) Close() {
	if a.latest != nil {
		if err := a.latest.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
	if a.archive != nil {
		a.archive.Close()
	}
}

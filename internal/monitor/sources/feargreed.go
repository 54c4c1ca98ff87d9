package sources

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/web3-frozen/market-recorder/internal/monitor"
)

const fngAPI = "https://api.alternative.me/fng/"

// FearGreed records the Alternative.me crypto fear & greed index.
type FearGreed struct {
	deps    Deps
	baseURL string
	now     func() time.Time
}

func NewFearGreed(deps Deps, baseURL string) *FearGreed {
	if baseURL == "" {
		baseURL = fngAPI
	}
	return &FearGreed{deps: deps.withDefaults(), baseURL: baseURL, now: time.Now}
}

func (f *FearGreed) Name() string  { return "fear_greed" }
func (f *FearGreed) Title() string { return "Fear & greed index" }

type fngEntry struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
}

type fngResponse struct {
	Data []fngEntry `json:"data"`
}

func (f *FearGreed) Fetch(ctx context.Context) (monitor.Record, error) {
	resp, err := fetchJSON[fngResponse](ctx, f.deps, f.Name(), f.baseURL)
	if err != nil {
		return nil, err
	}
	rec, err := f.project(resp)
	if err != nil {
		return nil, err
	}

	f.deps.Logger.Info("fear & greed index",
		"source", f.Name(),
		"value", rec.Value,
		"classification", rec.Classification,
		"band", classifyFng(float64(rec.Value)),
		"timestamp", rec.Timestamp.Format(time.RFC3339),
	)
	return rec, nil
}

func (f *FearGreed) project(resp fngResponse) (*monitor.Sentiment, error) {
	if len(resp.Data) == 0 {
		return nil, monitor.Malformed(f.Name(), "data[0]")
	}
	today := resp.Data[0]

	val, err := strconv.Atoi(strings.TrimSpace(today.Value))
	if err != nil || val < 0 || val > 100 {
		return nil, monitor.Malformed(f.Name(), "data[0].value")
	}
	if today.ValueClassification == "" {
		return nil, monitor.Malformed(f.Name(), "data[0].value_classification")
	}

	return &monitor.Sentiment{
		Timestamp:      f.now().UTC(),
		Value:          val,
		Classification: today.ValueClassification,
	}, nil
}

func classifyFng(v float64) string {
	switch {
	case v <= 25:
		return "😱 Extreme Fear"
	case v <= 45:
		return "😰 Fear"
	case v <= 55:
		return "😐 Neutral"
	case v <= 75:
		return "😀 Greed"
	default:
		return "🤑 Extreme Greed"
	}
}

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/market-recorder/internal/cache"
	"github.com/web3-frozen/market-recorder/internal/metrics"
	"github.com/web3-frozen/market-recorder/internal/store"
)

// Archiver mirrors records somewhere other than the JSON log.
type Archiver interface {
	InsertRecord(ctx context.Context, source string, capturedAt time.Time, rec any) error
}

// Collector binds a Source to its append-only log. A run fetches one record,
// appends it and then updates the optional cache and archive.
type Collector struct {
	src     Source
	log     *store.JSONLog
	latest  cache.Latest
	archive Archiver
	logger  *slog.Logger
}

func NewCollector(src Source, log *store.JSONLog, logger *slog.Logger) *Collector {
	return &Collector{
		src:    src,
		log:    log,
		logger: logger.With("source", src.Name()),
	}
}

// WithCache publishes every appended record as the source's latest.
func (c *Collector) WithCache(l cache.Latest) *Collector {
	c.latest = l
	return c
}

// WithArchive mirrors every appended record into a.
func (c *Collector) WithArchive(a Archiver) *Collector {
	c.archive = a
	return c
}

func (c *Collector) Name() string  { return c.src.Name() }
func (c *Collector) Title() string { return c.src.Title() }

// LogPath returns the file backing this collector's log.
func (c *Collector) LogPath() string { return c.log.Path() }

// Run fetches, persists and returns one record. Fetch and append failures
// fail the run; nothing already logged or written is rolled back. Cache and
// archive failures are only logged.
func (c *Collector) Run(ctx context.Context) (Record, error) {
	name := c.src.Name()
	start := time.Now()
	defer func() {
		metrics.PollDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	rec, err := c.src.Fetch(ctx)
	if err != nil {
		metrics.PollTotal.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	count, err := c.log.Append(rec)
	if err != nil {
		metrics.PollTotal.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("save %s: %w", name, err)
	}

	metrics.PollTotal.WithLabelValues(name, "success").Inc()
	metrics.PollLastSuccess.WithLabelValues(name).SetToCurrentTime()
	metrics.LogRecords.WithLabelValues(name).Set(float64(count))
	for metric, v := range recordMetrics(rec) {
		metrics.MetricValue.WithLabelValues(name, metric).Set(v)
	}

	if c.latest != nil {
		if payload, err := json.Marshal(rec); err != nil {
			c.logger.Warn("encode latest record", "error", err)
		} else if err := c.latest.Put(ctx, name, payload); err != nil {
			c.logger.Warn("update latest record cache", "error", err)
		}
	}
	if c.archive != nil {
		if err := c.archive.InsertRecord(ctx, name, rec.CapturedAt(), rec); err != nil {
			c.logger.Warn("archive record", "error", err)
		}
	}
	return rec, nil
}

// recordMetrics picks the headline numbers exported as business gauges.
func recordMetrics(rec Record) map[string]float64 {
	switch r := rec.(type) {
	case *MarketDominance:
		return map[string]float64{
			"total_market_cap":     r.TotalMarketCap,
			"stablecoin_dominance": r.StablecoinDominance,
			"btc_dominance":        r.MarketCapPercentages["btc"],
		}
	case *Sentiment:
		return map[string]float64{"fear_greed_index": float64(r.Value)}
	case *StablecoinRanking:
		return map[string]float64{"total_stablecoins_cap": r.TotalStablecoinsCap}
	case *ProtocolFees:
		var total float64
		for _, p := range r.Protocols {
			total += p.Total24h
		}
		return map[string]float64{"top_fees_24h": total}
	}
	return nil
}

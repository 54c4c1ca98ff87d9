package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/web3-frozen/market-recorder/internal/metrics"
)

const (
	defaultRunHour = 8
	reportLayout   = "2006-01-02 15:04:05"
)

// DefaultZone is the fixed UTC+8 zone the daily run is scheduled in.
var DefaultZone = time.FixedZone("UTC+8", 8*60*60)

// NotifyFunc delivers a run report to the chat channel.
type NotifyFunc func(text string) error

// Outcome is the result of one collector within a run.
type Outcome struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Error  string `json:"error,omitempty"`
	Record Record `json:"-"`
}

func (o Outcome) OK() bool { return o.Error == "" }

// RunSummary describes the last completed orchestration cycle.
type RunSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Engine runs every registered collector once a day at a fixed wall-clock
// time and reports the outcomes. It is built once at startup and owns all
// state the schedule needs.
type Engine struct {
	logger     *slog.Logger
	notify     NotifyFunc
	collectors []*Collector
	byName     map[string]*Collector
	runHour    int
	zone       *time.Location
	now        func() time.Time
	runOnStart bool

	mu      sync.RWMutex
	lastRun *RunSummary
}

// NewEngine returns an engine scheduled for 08:00 UTC+8. notify may be nil,
// in which case reports are only logged.
func NewEngine(logger *slog.Logger, notify NotifyFunc) *Engine {
	return &Engine{
		logger:  logger,
		notify:  notify,
		byName:  make(map[string]*Collector),
		runHour: defaultRunHour,
		zone:    DefaultZone,
		now:     time.Now,
	}
}

// WithSchedule sets the daily run to hour:00 in zone.
func (e *Engine) WithSchedule(hour int, zone *time.Location) *Engine {
	if hour >= 0 && hour < 24 {
		e.runHour = hour
	}
	if zone != nil {
		e.zone = zone
	}
	return e
}

// WithClock replaces time.Now, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithRunOnStart makes Run start with one immediate cycle. The daily timer
// is armed before that cycle, so a scheduled time passing during it still
// fires.
func (e *Engine) WithRunOnStart(on bool) *Engine {
	e.runOnStart = on
	return e
}

// Register appends a collector. Collectors run in registration order.
func (e *Engine) Register(c *Collector) {
	e.collectors = append(e.collectors, c)
	e.byName[c.Name()] = c
	e.logger.Info("registered source", "source", c.Name(), "log", c.LogPath())
}

// SourceNames returns names of all registered sources in run order.
func (e *Engine) SourceNames() []string {
	names := make([]string, 0, len(e.collectors))
	for _, c := range e.collectors {
		names = append(names, c.Name())
	}
	return names
}

// Collector returns the registered collector called name.
func (e *Engine) Collector(name string) (*Collector, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// LastRun returns the summary of the last completed cycle, or nil.
func (e *Engine) LastRun() *RunSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRun
}

// Run fires RunOnce every day at the scheduled time until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	timer := e.nextRunTimer()
	defer func() { timer.Stop() }()

	if e.runOnStart {
		e.logger.Info("running collection cycle now")
		e.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.RunOnce(ctx)
			timer = e.nextRunTimer()
		}
	}
}

// RunOnce runs every collector one after another, then sends one report.
// A failing collector never stops the ones after it.
func (e *Engine) RunOnce(ctx context.Context) []Outcome {
	metrics.RunsTotal.Inc()
	started := e.now()
	e.logger.Info("collection run started", "sources", len(e.collectors))

	outcomes := make([]Outcome, 0, len(e.collectors))
	for _, c := range e.collectors {
		o := Outcome{Source: c.Name(), Title: c.Title()}
		rec, err := c.Run(ctx)
		if err != nil {
			o.Error = err.Error()
			e.logger.Error("collector failed", "source", c.Name(), "error", err)
		} else {
			o.Record = rec
			e.logger.Info("collector succeeded", "source", c.Name())
		}
		outcomes = append(outcomes, o)
	}

	finished := e.now()
	e.mu.Lock()
	e.lastRun = &RunSummary{StartedAt: started, FinishedAt: finished, Outcomes: outcomes}
	e.mu.Unlock()

	e.sendReport(BuildReport(finished.In(e.zone), outcomes))
	return outcomes
}

// RunCollector runs a single collector outside the schedule. Its error is
// returned as is and no report is sent.
func (e *Engine) RunCollector(ctx context.Context, name string) (Record, error) {
	c, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(e.SourceNames(), ", "))
	}
	return c.Run(ctx)
}

func (e *Engine) sendReport(report string) {
	if e.notify == nil {
		e.logger.Info("notifier not configured, report not sent", "report", report)
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if err := e.notify(report); err != nil {
		e.logger.Error("send run report failed", "error", err)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}
	e.logger.Info("run report sent")
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// BuildReport renders the chat message for one run.
func BuildReport(ts time.Time, outcomes []Outcome) string {
	var b strings.Builder
	b.WriteString("📊 Crypto market data collection report\n")
	b.WriteString(fmt.Sprintf("🕒 %s\n\n", ts.Format(reportLayout)))
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n")
		}
		if o.OK() {
			b.WriteString(fmt.Sprintf("✅ %s: ok", o.Title))
		} else {
			b.WriteString(fmt.Sprintf("❌ %s: failed (%s)", o.Title, o.Error))
		}
	}
	return b.String()
}

// NextRun returns the first scheduled run strictly after now.
func (e *Engine) NextRun(now time.Time) time.Time {
	local := now.In(e.zone)
	next := time.Date(local.Year(), local.Month(), local.Day(), e.runHour, 0, 0, 0, e.zone)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (e *Engine) nextRunTimer() *time.Timer {
	now := e.now()
	next := e.NextRun(now)
	duration := next.Sub(now)
	e.logger.Info("next collection run", "at", next.Format(time.RFC3339), "in", duration.Round(time.Minute).String())
	return time.NewTimer(duration)
}

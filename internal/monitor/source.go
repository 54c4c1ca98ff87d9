package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source defines the interface that all market data sources must implement.
// To add a new feed, create a struct that implements this interface and
// register it with the Engine wrapped in a Collector.
type Source interface {
	// Name returns a unique identifier for this source (e.g., "fear_greed").
	Name() string

	// Title is the human-readable task name used in run reports.
	Title() string

	// Fetch polls the upstream endpoint and returns a normalized record.
	Fetch(ctx context.Context) (Record, error)
}

// Record is one immutable snapshot appended to a source's log.
type Record interface {
	CapturedAt() time.Time
}

// ErrMalformedResponse is matched by every MalformedError.
var ErrMalformedResponse = errors.New("malformed upstream response")

// MalformedError reports a required field missing from an upstream payload.
type MalformedError struct {
	Source string
	Field  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: missing or invalid field %q", e.Source, e.Field)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

// Malformed is shorthand for building a *MalformedError.
func Malformed(source, field string) error {
	return &MalformedError{Source: source, Field: field}
}

// MarketDominance is the global market capitalization split by asset.
type MarketDominance struct {
	Timestamp            time.Time          `json:"timestamp"`
	SourceUpdatedAt      time.Time          `json:"sourceUpdatedAt,omitzero"`
	TotalMarketCap       float64            `json:"totalMarketCap"`
	MarketCapPercentages map[string]float64 `json:"marketCapPercentages"`
	StablecoinDominance  float64            `json:"stablecoinDominance"`
}

func (r *MarketDominance) CapturedAt() time.Time { return r.Timestamp }

// Sentiment is one reading of the fear & greed index.
type Sentiment struct {
	Timestamp      time.Time `json:"timestamp"`
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
}

func (r *Sentiment) CapturedAt() time.Time { return r.Timestamp }

// Stablecoin is a ranked entry of StablecoinRanking.
type Stablecoin struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCap"`
}

// StablecoinRanking holds the largest stablecoins by circulating supply.
type StablecoinRanking struct {
	Timestamp           time.Time    `json:"timestamp"`
	TotalStablecoinsCap float64      `json:"totalStablecoinsCap"`
	TopStablecoins      []Stablecoin `json:"topStablecoins"`
}

func (r *StablecoinRanking) CapturedAt() time.Time { return r.Timestamp }

// ProtocolFee is a ranked entry of ProtocolFees.
type ProtocolFee struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Total24h  float64 `json:"total24h"`
	Total7d   float64 `json:"total7d"`
	Total30d  float64 `json:"total30d"`
	Change1d  float64 `json:"change1d"`
	Change7d  float64 `json:"change7d"`
	Change30d float64 `json:"change30d"`
}

// ProtocolFees holds the protocols earning the most fees over 24h.
type ProtocolFees struct {
	Timestamp         time.Time          `json:"timestamp"`
	Protocols         []ProtocolFee      `json:"protocols"`
	CategoryTotals24h map[string]float64 `json:"categoryTotals24h"`
}

func (r *ProtocolFees) CapturedAt() time.Time { return r.Timestamp }

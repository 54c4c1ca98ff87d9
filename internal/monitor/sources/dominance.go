package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/web3-frozen/market-recorder/internal/monitor"
)

const coingeckoGlobalAPI = "https://api.coingecko.com/api/v3/global"

// Symbols whose market cap shares add up to the stablecoin dominance.
var dominanceStablecoins = []string{"usdt", "usdc"}

// MarketDominance records the global market cap and each asset's share of it
// from CoinGecko.
type MarketDominance struct {
	deps    Deps
	baseURL string
	now     func() time.Time
}

func NewMarketDominance(deps Deps, baseURL string) *MarketDominance {
	if baseURL == "" {
		baseURL = coingeckoGlobalAPI
	}
	return &MarketDominance{deps: deps.withDefaults(), baseURL: baseURL, now: time.Now}
}

func (m *MarketDominance) Name() string  { return "market_dominance" }
func (m *MarketDominance) Title() string { return "Market dominance" }

type globalResponse struct {
	Data *struct {
		TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
		UpdatedAt           int64              `json:"updated_at"`
	} `json:"data"`
}

func (m *MarketDominance) Fetch(ctx context.Context) (monitor.Record, error) {
	resp, err := fetchJSON[globalResponse](ctx, m.deps, m.Name(), m.baseURL)
	if err != nil {
		return nil, err
	}
	rec, err := m.project(resp)
	if err != nil {
		return nil, err
	}
	m.logSummary(rec)
	return rec, nil
}

func (m *MarketDominance) project(resp globalResponse) (*monitor.MarketDominance, error) {
	if resp.Data == nil {
		return nil, monitor.Malformed(m.Name(), "data")
	}
	total, ok := resp.Data.TotalMarketCap["usd"]
	if !ok {
		return nil, monitor.Malformed(m.Name(), "data.total_market_cap.usd")
	}
	if len(resp.Data.MarketCapPercentage) == 0 {
		return nil, monitor.Malformed(m.Name(), "data.market_cap_percentage")
	}

	var stable float64
	for _, sym := range dominanceStablecoins {
		pct, ok := resp.Data.MarketCapPercentage[sym]
		if !ok {
			return nil, monitor.Malformed(m.Name(), "data.market_cap_percentage."+sym)
		}
		stable += pct
	}

	rec := &monitor.MarketDominance{
		Timestamp:            m.now().UTC(),
		TotalMarketCap:       total,
		MarketCapPercentages: resp.Data.MarketCapPercentage,
		StablecoinDominance:  stable,
	}
	if resp.Data.UpdatedAt > 0 {
		rec.SourceUpdatedAt = time.Unix(resp.Data.UpdatedAt, 0).UTC()
	}
	return rec, nil
}

func (m *MarketDominance) logSummary(rec *monitor.MarketDominance) {
	log := m.deps.Logger.With("source", m.Name())
	log.Info("market overview",
		"updated_at", rec.SourceUpdatedAt.Format(time.RFC3339),
		"total_market_cap", monitor.FormatBillions(rec.TotalMarketCap),
	)

	type share struct {
		symbol string
		pct    float64
	}
	shares := make([]share, 0, len(rec.MarketCapPercentages))
	for sym, pct := range rec.MarketCapPercentages {
		shares = append(shares, share{sym, pct})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].pct == shares[j].pct {
			return shares[i].symbol < shares[j].symbol
		}
		return shares[i].pct > shares[j].pct
	})
	for _, s := range shares {
		log.Info("market share", "symbol", strings.ToUpper(s.symbol), "share", fmt.Sprintf("%.2f%%", s.pct))
	}
	log.Info("stablecoin dominance", "share", fmt.Sprintf("%.2f%%", rec.StablecoinDominance))
}

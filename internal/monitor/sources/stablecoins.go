package sources

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/web3-frozen/market-recorder/internal/monitor"
)

const defillamaStablecoinsAPI = "https://stablecoins.llama.fi/stablecoins?includePrices=true"

// TotalMode selects what TotalStablecoinsCap sums over.
type TotalMode string

const (
	// TotalAllAssets sums every pegged asset, ranked or not.
	TotalAllAssets TotalMode = "all"
	// TotalTopN sums only the ranked entries.
	TotalTopN TotalMode = "top"
)

// DefaultStablecoinTopN is the ranking length used when none is configured.
const DefaultStablecoinTopN = 10

// StablecoinTopNs are the ranking lengths the presentation renders.
var StablecoinTopNs = []int{3, 10}

// Stablecoins ranks stablecoins by circulating USD supply from DefiLlama.
type Stablecoins struct {
	deps      Deps
	baseURL   string
	topN      int
	totalMode TotalMode
	now       func() time.Time
}

func NewStablecoins(deps Deps, baseURL string, topN int, mode TotalMode) *Stablecoins {
	if baseURL == "" {
		baseURL = defillamaStablecoinsAPI
	}
	deps = deps.withDefaults()
	if topN <= 0 {
		topN = DefaultStablecoinTopN
	}
	if !slices.Contains(StablecoinTopNs, topN) {
		deps.Logger.Warn("unsupported stablecoin ranking length, using default",
			"top_n", topN, "supported", StablecoinTopNs, "default", DefaultStablecoinTopN)
		topN = DefaultStablecoinTopN
	}
	if mode != TotalTopN {
		mode = TotalAllAssets
	}
	return &Stablecoins{
		deps:      deps,
		baseURL:   baseURL,
		topN:      topN,
		totalMode: mode,
		now:       time.Now,
	}
}

func (s *Stablecoins) Name() string  { return "stablecoins" }
func (s *Stablecoins) Title() string { return "Stablecoin ranking" }

type peggedAsset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Circulating struct {
		PeggedUSD *float64 `json:"peggedUSD"`
	} `json:"circulating"`
}

func (a peggedAsset) marketCap() float64 {
	if a.Circulating.PeggedUSD == nil {
		return 0
	}
	return *a.Circulating.PeggedUSD
}

type stablecoinsResponse struct {
	PeggedAssets []peggedAsset `json:"peggedAssets"`
}

func (s *Stablecoins) Fetch(ctx context.Context) (monitor.Record, error) {
	resp, err := fetchJSON[stablecoinsResponse](ctx, s.deps, s.Name(), s.baseURL)
	if err != nil {
		return nil, err
	}
	rec, err := s.project(resp)
	if err != nil {
		return nil, err
	}
	s.logSummary(rec, len(resp.PeggedAssets))
	return rec, nil
}

func (s *Stablecoins) project(resp stablecoinsResponse) (*monitor.StablecoinRanking, error) {
	if resp.PeggedAssets == nil {
		return nil, monitor.Malformed(s.Name(), "peggedAssets")
	}

	assets := make([]peggedAsset, len(resp.PeggedAssets))
	copy(assets, resp.PeggedAssets)
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].marketCap() > assets[j].marketCap()
	})

	n := s.topN
	if n > len(assets) {
		n = len(assets)
	}

	top := make([]monitor.Stablecoin, 0, n)
	var topSum, allSum float64
	for i, a := range assets {
		allSum += a.marketCap()
		if i < n {
			topSum += a.marketCap()
			top = append(top, monitor.Stablecoin{
				Symbol:    a.Symbol,
				Name:      a.Name,
				MarketCap: a.marketCap(),
			})
		}
	}

	total := allSum
	if s.totalMode == TotalTopN {
		total = topSum
	}

	return &monitor.StablecoinRanking{
		Timestamp:           s.now().UTC(),
		TotalStablecoinsCap: total,
		TopStablecoins:      top,
	}, nil
}

func (s *Stablecoins) logSummary(rec *monitor.StablecoinRanking, assets int) {
	log := s.deps.Logger.With("source", s.Name())
	log.Info("stablecoin ranking",
		"top_n", len(rec.TopStablecoins),
		"assets", humanize.Comma(int64(assets)),
		"total_mode", string(s.totalMode),
		"total", monitor.FormatUSD(rec.TotalStablecoinsCap),
	)
	for i, c := range rec.TopStablecoins {
		log.Info("stablecoin rank",
			"rank", i+1,
			"symbol", c.Symbol,
			"market_cap", monitor.FormatUSD(c.MarketCap),
		)
	}
	for _, sh := range monitor.StablecoinShares(rec, 3) {
		log.Info("stablecoin share",
			"symbol", sh.Symbol,
			"share", fmt.Sprintf("%.2f%%", sh.Percent),
			"market_cap", monitor.FormatBillions(sh.MarketCap),
		)
	}
}

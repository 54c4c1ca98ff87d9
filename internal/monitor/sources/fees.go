package sources

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/web3-frozen/market-recorder/internal/monitor"
)

const (
	defillamaFeesAPI = "https://api.llama.fi/overview/fees"
	feesTopN         = 20

	// UncategorizedFees labels protocols the upstream leaves without a category.
	UncategorizedFees = "Uncategorized"
)

// ProtocolFees ranks protocols by 24h fees from DefiLlama.
type ProtocolFees struct {
	deps    Deps
	baseURL string
	now     func() time.Time
}

func NewProtocolFees(deps Deps, baseURL string) *ProtocolFees {
	if baseURL == "" {
		baseURL = defillamaFeesAPI
	}
	return &ProtocolFees{deps: deps.withDefaults(), baseURL: baseURL, now: time.Now}
}

func (p *ProtocolFees) Name() string  { return "protocol_fees" }
func (p *ProtocolFees) Title() string { return "Protocol fees ranking" }

type feeProtocol struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Total24h  *float64 `json:"total24h"`
	Total7d   *float64 `json:"total7d"`
	Total30d  *float64 `json:"total30d"`
	Change1d  *float64 `json:"change_1d"`
	Change7d  *float64 `json:"change_7d"`
	Change30d *float64 `json:"change_1m"`
}

type feesResponse struct {
	Protocols []feeProtocol `json:"protocols"`
}

func (p *ProtocolFees) Fetch(ctx context.Context) (monitor.Record, error) {
	resp, err := fetchJSON[feesResponse](ctx, p.deps, p.Name(), p.baseURL)
	if err != nil {
		return nil, err
	}
	rec, err := p.project(resp)
	if err != nil {
		return nil, err
	}
	p.logSummary(rec)
	return rec, nil
}

func (p *ProtocolFees) project(resp feesResponse) (*monitor.ProtocolFees, error) {
	if resp.Protocols == nil {
		return nil, monitor.Malformed(p.Name(), "protocols")
	}

	protocols := make([]feeProtocol, len(resp.Protocols))
	copy(protocols, resp.Protocols)
	sort.SliceStable(protocols, func(i, j int) bool {
		return num(protocols[i].Total24h) > num(protocols[j].Total24h)
	})
	if len(protocols) > feesTopN {
		protocols = protocols[:feesTopN]
	}

	rec := &monitor.ProtocolFees{
		Timestamp:         p.now().UTC(),
		Protocols:         make([]monitor.ProtocolFee, 0, len(protocols)),
		CategoryTotals24h: make(map[string]float64),
	}
	for _, fp := range protocols {
		category := strings.TrimSpace(fp.Category)
		if category == "" {
			category = UncategorizedFees
		}
		fee := monitor.ProtocolFee{
			Name:      fp.Name,
			Category:  category,
			Total24h:  num(fp.Total24h),
			Total7d:   num(fp.Total7d),
			Total30d:  num(fp.Total30d),
			Change1d:  num(fp.Change1d),
			Change7d:  num(fp.Change7d),
			Change30d: num(fp.Change30d),
		}
		rec.Protocols = append(rec.Protocols, fee)
		rec.CategoryTotals24h[category] += fee.Total24h
	}
	return rec, nil
}

func (p *ProtocolFees) logSummary(rec *monitor.ProtocolFees) {
	log := p.deps.Logger.With("source", p.Name())
	for i, fp := range rec.Protocols {
		log.Info("protocol fees rank",
			"rank", i+1,
			"name", fp.Name,
			"category", fp.Category,
			"fees_24h", monitor.FormatUSD(fp.Total24h),
			"fees_7d", monitor.FormatUSD(fp.Total7d),
			"fees_30d", monitor.FormatUSD(fp.Total30d),
		)
	}
	for category, total := range rec.CategoryTotals24h {
		log.Info("protocol fees by category", "category", category, "fees_24h", monitor.FormatUSD(total))
	}
}

// num reads an optional upstream number; absent counts as zero.
func num(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

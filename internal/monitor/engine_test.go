package monitor

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "$0.00"},
		{0.5, "$0.50"},
		{999.99, "$999.99"},
		{1000, "$1.00K"},
		{1234.56, "$1.23K"},
		{999_999, "$1000.00K"},
		{1_000_000, "$1.00M"},
		{1_500_000, "$1.50M"},
		{123_456_789, "$123.46M"},
		{1_000_000_000, "$1.00B"},
		{2_870_000_000_000, "$2870.00B"},
		{math.NaN(), "$0"},
		{math.Inf(1), "$0"},
	}
	for _, tt := range tests {
		got := FormatUSD(tt.input)
		if got != tt.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatUSDSuffixByMagnitude(t *testing.T) {
	tests := []struct {
		min, max float64
		suffix   string
	}{
		{1e9, 1e13, "B"},
		{1e6, 1e9 - 1, "M"},
		{1e3, 1e6 - 1, "K"},
	}
	for _, tt := range tests {
		for _, v := range []float64{tt.min, (tt.min + tt.max) / 2, tt.max} {
			got := FormatUSD(v)
			if !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("FormatUSD(%v) = %q, want suffix %q", v, got, tt.suffix)
			}
			num := strings.TrimSuffix(strings.TrimPrefix(got, "$"), tt.suffix)
			dot := strings.IndexByte(num, '.')
			if dot < 0 || len(num)-dot-1 != 2 {
				t.Errorf("FormatUSD(%v) = %q, want exactly two decimals", v, got)
			}
		}
	}
	for _, v := range []float64{0, 1, 12.345, 999.994} {
		got := FormatUSD(v)
		if strings.ContainsAny(got, "KMB") {
			t.Errorf("FormatUSD(%v) = %q, want no suffix", v, got)
		}
	}
}

func TestFormatBillions(t *testing.T) {
	if got := FormatBillions(2_345_670_000_000); got != "$2345.67B" {
		t.Errorf("FormatBillions = %q, want %q", got, "$2345.67B")
	}
	if got := FormatBillions(math.NaN()); got != "$0" {
		t.Errorf("FormatBillions(NaN) = %q, want %q", got, "$0")
	}
}

func TestStablecoinShares(t *testing.T) {
	rec := &StablecoinRanking{
		TotalStablecoinsCap: 200,
		TopStablecoins: []Stablecoin{
			{Symbol: "USDT", MarketCap: 100},
			{Symbol: "USDC", MarketCap: 50},
			{Symbol: "DAI", MarketCap: 10},
			{Symbol: "FDUSD", MarketCap: 5},
		},
	}

	shares := StablecoinShares(rec, 3)
	if len(shares) != 4 {
		t.Fatalf("len(shares) = %d, want 4", len(shares))
	}
	want := []struct {
		symbol  string
		percent float64
	}{
		{"USDT", 50}, {"USDC", 25}, {"DAI", 5}, {OtherBucket, 20},
	}
	for i, w := range want {
		if shares[i].Symbol != w.symbol || math.Abs(shares[i].Percent-w.percent) > 1e-9 {
			t.Errorf("shares[%d] = %+v, want %s %.2f%%", i, shares[i], w.symbol, w.percent)
		}
	}
	if shares[3].MarketCap != 40 {
		t.Errorf("OTHER market cap = %v, want 40", shares[3].MarketCap)
	}

	if got := StablecoinShares(&StablecoinRanking{}, 3); got != nil {
		t.Errorf("zero total: got %v, want nil", got)
	}
	if got := StablecoinShares(rec, 10); len(got) != 5 {
		t.Errorf("n beyond ranking: len = %d, want 5", len(got))
	}
}

func TestBuildReport(t *testing.T) {
	ts := time.Date(2026, 10, 18, 8, 0, 0, 0, DefaultZone)
	outcomes := []Outcome{
		{Source: "market_dominance", Title: "Market dominance"},
		{Source: "fear_greed", Title: "Fear & greed index", Error: "fetch fear_greed: timeout"},
	}

	got := BuildReport(ts, outcomes)
	want := "📊 Crypto market data collection report\n" +
		"🕒 2026-10-18 08:00:00\n\n" +
		"✅ Market dominance: ok\n" +
		"❌ Fear & greed index: failed (fetch fear_greed: timeout)"
	if got != want {
		t.Errorf("BuildReport =\n%s\nwant\n%s", got, want)
	}
}

func TestNextRun(t *testing.T) {
	e := NewEngine(testLogger(), nil)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before run hour",
			now:  time.Date(2026, 10, 18, 7, 59, 0, 0, DefaultZone),
			want: time.Date(2026, 10, 18, 8, 0, 0, 0, DefaultZone),
		},
		{
			name: "exactly at run hour",
			now:  time.Date(2026, 10, 18, 8, 0, 0, 0, DefaultZone),
			want: time.Date(2026, 10, 19, 8, 0, 0, 0, DefaultZone),
		},
		{
			name: "after run hour",
			now:  time.Date(2026, 10, 18, 21, 30, 0, 0, DefaultZone),
			want: time.Date(2026, 10, 19, 8, 0, 0, 0, DefaultZone),
		},
		{
			name: "utc input",
			now:  time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC), // 07:00 UTC+8
			want: time.Date(2026, 10, 18, 8, 0, 0, 0, DefaultZone),
		},
	}
	for _, tt := range tests {
		got := e.NextRun(tt.now)
		if !got.Equal(tt.want) {
			t.Errorf("%s: NextRun(%v) = %v, want %v", tt.name, tt.now, got, tt.want)
		}
	}
}

func TestWithSchedule(t *testing.T) {
	utc := time.UTC
	e := NewEngine(testLogger(), nil).WithSchedule(0, utc)

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, utc)
	want := time.Date(2026, 10, 19, 0, 0, 0, 0, utc)
	if got := e.NextRun(now); !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}

	// out of range hour keeps the previous one
	e.WithSchedule(24, nil)
	if got := e.NextRun(now); !got.Equal(want) {
		t.Errorf("NextRun after invalid hour = %v, want %v", got, want)
	}
}

func TestMalformedError(t *testing.T) {
	err := Malformed("fear_greed", "data[0].value")
	if !strings.Contains(err.Error(), "data[0].value") {
		t.Errorf("Error() = %q, want field name", err.Error())
	}
	if !isMalformed(err) {
		t.Error("errors.Is(err, ErrMalformedResponse) = false, want true")
	}
}

func TestMarketDominanceOmitsMissingSourceTime(t *testing.T) {
	rec := &MarketDominance{Timestamp: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(out), "sourceUpdatedAt") {
		t.Errorf("zero source time was written: %s", out)
	}

	rec.SourceUpdatedAt = time.Unix(1760745600, 0).UTC()
	out, _ = json.Marshal(rec)
	if !strings.Contains(string(out), `"sourceUpdatedAt":"2025-10-18T00:00:00Z"`) {
		t.Errorf("source time missing: %s", out)
	}
}

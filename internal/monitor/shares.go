package monitor

// OtherBucket is the label of the remainder in StablecoinShares.
const OtherBucket = "OTHER"

// Share is one slice of the stablecoin supply.
type Share struct {
	Symbol    string
	MarketCap float64
	Percent   float64
}

// StablecoinShares splits the total circulating supply into the first n
// ranked stablecoins plus an OTHER bucket. Every percentage, OTHER included,
// is taken against TotalStablecoinsCap, so OTHER covers everything outside
// the first n whether or not it made the ranking.
func StablecoinShares(r *StablecoinRanking, n int) []Share {
	if r == nil || r.TotalStablecoinsCap <= 0 {
		return nil
	}
	if n > len(r.TopStablecoins) {
		n = len(r.TopStablecoins)
	}
	if n < 0 {
		n = 0
	}

	shares := make([]Share, 0, n+1)
	var topSum float64
	for _, c := range r.TopStablecoins[:n] {
		topSum += c.MarketCap
		shares = append(shares, Share{
			Symbol:    c.Symbol,
			MarketCap: c.MarketCap,
			Percent:   c.MarketCap / r.TotalStablecoinsCap * 100,
		})
	}

	other := r.TotalStablecoinsCap - topSum
	if other < 0 {
		other = 0
	}
	shares = append(shares, Share{
		Symbol:    OtherBucket,
		MarketCap: other,
		Percent:   other / r.TotalStablecoinsCap * 100,
	})
	return shares
}

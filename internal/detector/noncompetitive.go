package detector

import (
	"github.com/su1ph3r/procrisk/internal/stats"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// NonCompetitiveOptions holds the inclusion thresholds for the
// non-competitive detector
type NonCompetitiveOptions struct {
	DollarThreshold    float64 // minimum non-competitive dollars per bidder
	MaxTenderThreshold float64 // minimum value of the largest non-competitive tender
}

// DefaultNonCompetitiveOptions returns the standard thresholds
func DefaultNonCompetitiveOptions() NonCompetitiveOptions {
	return NonCompetitiveOptions{
		DollarThreshold:    1_000_000,
		MaxTenderThreshold: 1_000_000,
	}
}

// NonCompetitiveOptionsFromConfig extracts detector options from config
func NonCompetitiveOptionsFromConfig(cfg *types.Config) NonCompetitiveOptions {
	return NonCompetitiveOptions{
		DollarThreshold:    cfg.NonCompetitive.DollarThreshold,
		MaxTenderThreshold: cfg.NonCompetitive.MaxTenderThreshold,
	}
}

// Qualifies reports whether a summary row satisfies every inclusion condition
func (o NonCompetitiveOptions) Qualifies(row types.NonCompetitiveRow) bool {
	return row.NonCompetitiveTendersWon >= 1 &&
		row.NonCompetitiveDollarsAtRisk >= o.DollarThreshold &&
		row.MostExpensiveNonCompetitive >= o.MaxTenderThreshold
}

type nonCompStats struct {
	count int
	sum   float64
	max   float64
}

// DetectNonCompetitive scores bidders by their reliance on non-competitive
// awards. Totals cover every record; the non-competitive figures cover only
// flagged records.
func DetectNonCompetitive(table types.RecordTable, opts NonCompetitiveOptions) *types.NonCompetitiveResult {
	flagged := table.NonCompetitive()
	totals := totalsByBidder(table)

	nc := make(map[types.BidderKey]*nonCompStats)
	buyers := make(buyerAmounts)
	for _, r := range flagged {
		s, ok := nc[r.Bidder]
		if !ok {
			s = &nonCompStats{}
			nc[r.Bidder] = s
		}
		s.count++
		s.sum += r.PriceUSD
		if r.PriceUSD > s.max {
			s.max = r.PriceUSD
		}
		buyers.add(r.Bidder, r.Buyer.Name, r.PriceUSD)
	}

	var rows []types.NonCompetitiveRow
	for _, key := range sortedKeys(totals) {
		t := totals[key]
		row := types.NonCompetitiveRow{
			BidderKey:       key,
			TotalTendersWon: t.tenders,
			TotalPayments:   t.payments,
		}
		if s, ok := nc[key]; ok {
			row.NonCompetitiveTendersWon = s.count
			row.NonCompetitiveDollarsAtRisk = s.sum
			row.AvgPriceNonCompetitive = stats.SafeRatio(s.sum, float64(s.count))
			row.MostExpensiveNonCompetitive = s.max
			row.TopBuyer, row.TotalPaidByTopBuyer = buyers.top(key)
		}
		row.PctPaymentsNonCompetitive = stats.SafeRatio(row.NonCompetitiveDollarsAtRisk, row.TotalPayments)
		row.PctTendersNonCompetitive = stats.SafeRatio(float64(row.NonCompetitiveTendersWon), float64(row.TotalTendersWon))

		if opts.Qualifies(row) {
			rows = append(rows, row)
		}
	}

	counts := make([]float64, len(rows))
	for i, row := range rows {
		counts[i] = float64(row.NonCompetitiveTendersWon)
	}
	ranks := stats.PercentileRank(counts)
	for i := range rows {
		rows[i].RiskScore = ranks[i] * rows[i].PctTendersNonCompetitive * 100
	}

	sortByScore(rows,
		func(r types.NonCompetitiveRow) types.BidderKey { return r.BidderKey },
		func(r types.NonCompetitiveRow) float64 { return r.RiskScore })

	return &types.NonCompetitiveResult{
		Summary: rows,
		Tenders: flagged,
	}
}

package detector

import (
	"math"
	"time"

	"github.com/su1ph3r/procrisk/internal/stats"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// ShortWindowOptions holds the bidding window filters
type ShortWindowOptions struct {
	Quantile float64 // population quantile used as the short-window threshold
	MaxDays  int     // windows longer than this are treated as malformed
	MinValue float64 // tenders below this value are out of scope
}

// DefaultShortWindowOptions returns the standard filters
func DefaultShortWindowOptions() ShortWindowOptions {
	return ShortWindowOptions{
		Quantile: 0.10,
		MaxDays:  365,
		MinValue: 1_000_000,
	}
}

// ShortWindowOptionsFromConfig extracts detector options from config
func ShortWindowOptionsFromConfig(cfg *types.Config) ShortWindowOptions {
	return ShortWindowOptions{
		Quantile: cfg.ShortWindow.Quantile,
		MaxDays:  cfg.ShortWindow.MaxDays,
		MinValue: cfg.ShortWindow.MinValue,
	}
}

// EffectiveDeadline returns the bid deadline, falling back to the award
// decision, first contract award and contract signature dates in that order
func EffectiveDeadline(r types.TenderRecord) *time.Time {
	return types.FirstDate(r.BidDeadline, r.AwardDecisionDate, r.FirstContractAwardDate, r.ContractSignatureDate)
}

// wholeDays returns the number of whole days in d, rounding toward
// negative infinity
func wholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

type windowStats struct {
	count   int
	days    int
	minDays int
	dollars float64
}

// DetectShortBidWindows flags competitive tenders whose bidding window falls
// below the population's low quantile
func DetectShortBidWindows(table types.RecordTable, opts ShortWindowOptions) *types.ShortWindowResult {
	var population []types.BidWindow
	for _, r := range table.Competitive() {
		deadline := EffectiveDeadline(r)
		if r.PublicationDate == nil || deadline == nil {
			continue
		}
		days := wholeDays(deadline.Sub(*r.PublicationDate))
		if days <= 0 || days > opts.MaxDays || r.PriceUSD < opts.MinValue {
			continue
		}
		population = append(population, types.BidWindow{
			TenderID:              r.TenderID,
			Bidder:                r.Bidder,
			BuyerName:             r.Buyer.Name,
			Title:                 r.Title,
			LotTitle:              r.LotTitle,
			LotStatus:             r.LotStatus,
			SupplyType:            r.SupplyType,
			PriceUSD:              r.PriceUSD,
			PublicationDate:       *r.PublicationDate,
			BidDeadline:           r.BidDeadline,
			AwardDecisionDate:     r.AwardDecisionDate,
			ContractSignatureDate: r.ContractSignatureDate,
			EffectiveDeadline:     *deadline,
			WindowDays:            days,
		})
	}

	result := &types.ShortWindowResult{Population: population}

	windows := make([]float64, len(population))
	for i, w := range population {
		windows[i] = float64(w.WindowDays)
	}
	threshold, ok := stats.Quantile(windows, opts.Quantile)
	if !ok {
		return result
	}
	result.Threshold = threshold
	result.HasThreshold = true

	agg := make(map[types.BidderKey]*windowStats)
	buyers := make(buyerAmounts)
	for _, w := range population {
		if float64(w.WindowDays) >= threshold {
			continue
		}
		result.Flagged = append(result.Flagged, w)

		s, ok := agg[w.Bidder]
		if !ok {
			s = &windowStats{minDays: w.WindowDays}
			agg[w.Bidder] = s
		}
		s.count++
		s.days += w.WindowDays
		s.dollars += w.PriceUSD
		if w.WindowDays < s.minDays {
			s.minDays = w.WindowDays
		}
		buyers.add(w.Bidder, w.BuyerName, w.PriceUSD)
	}

	keys := sortedKeys(agg)
	rows := make([]types.ShortWindowRow, 0, len(keys))
	counts := make([]float64, 0, len(keys))
	avgs := make([]float64, 0, len(keys))
	for _, key := range keys {
		s := agg[key]
		row := types.ShortWindowRow{
			BidderKey:     key,
			Count:         s.count,
			AvgWindowDays: stats.SafeRatio(float64(s.days), float64(s.count)),
			MinWindowDays: s.minDays,
			AvgPayment:    stats.SafeRatio(s.dollars, float64(s.count)),
			DollarsAtRisk: s.dollars,
		}
		row.TopBuyer, row.TopBuyerPayments = buyers.top(key)
		rows = append(rows, row)
		counts = append(counts, float64(row.Count))
		avgs = append(avgs, row.AvgWindowDays)
	}

	countRanks := stats.PercentileRank(counts)
	avgRanks := stats.PercentileRank(avgs)
	for i := range rows {
		rows[i].RiskScore = 100 * countRanks[i] * (1 - avgRanks[i])
	}

	sortByScore(rows,
		func(r types.ShortWindowRow) types.BidderKey { return r.BidderKey },
		func(r types.ShortWindowRow) float64 { return r.RiskScore })
	result.Summary = rows
	return result
}

package detector

import (
	"sort"

	"github.com/su1ph3r/procrisk/internal/stats"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// ConcentrationOptions holds the spending concentration thresholds
type ConcentrationOptions struct {
	ShareThreshold float64 // payment or tender share that counts as concentrated
	MinPayment     float64 // yearly payment to the bidder must exceed this
}

// DefaultConcentrationOptions returns the standard thresholds
func DefaultConcentrationOptions() ConcentrationOptions {
	return ConcentrationOptions{
		ShareThreshold: 0.10,
		MinPayment:     1_000_000,
	}
}

// ConcentrationOptionsFromConfig extracts detector options from config
func ConcentrationOptionsFromConfig(cfg *types.Config) ConcentrationOptions {
	return ConcentrationOptions{
		ShareThreshold: cfg.SpendingConcentration.ShareThreshold,
		MinPayment:     cfg.SpendingConcentration.MinPayment,
	}
}

type buyerYear struct {
	buyer types.BuyerKey
	year  int
}

type buyerBidderYear struct {
	buyerYear
	bidder types.BidderKey
}

type tally struct {
	count int
	sum   float64
}

func (t *tally) add(v float64) {
	t.count++
	t.sum += v
}

type concentrationRollup struct {
	count     int
	dollars   float64
	pctTender float64
	pctPay    float64
}

// DetectSpendingConcentration flags buyer-year relationships in which one
// bidder captured a disproportionate share of competitive awards.
func DetectSpendingConcentration(table types.RecordTable, opts ConcentrationOptions) *types.ConcentrationResult {
	competitive := table.Competitive()

	byBuyerYear := make(map[buyerYear]*tally)
	byTriple := make(map[buyerBidderYear]*tally)
	buyerAllTime := make(map[types.BuyerKey]float64)
	var triples []buyerBidderYear

	for _, r := range competitive {
		by := buyerYear{buyer: r.Buyer, year: r.Year}
		if _, ok := byBuyerYear[by]; !ok {
			byBuyerYear[by] = &tally{}
		}
		byBuyerYear[by].add(r.PriceUSD)

		k := buyerBidderYear{buyerYear: by, bidder: r.Bidder}
		if _, ok := byTriple[k]; !ok {
			byTriple[k] = &tally{}
			triples = append(triples, k)
		}
		byTriple[k].add(r.PriceUSD)

		buyerAllTime[r.Buyer] += r.PriceUSD
	}

	topBuyers := make(buyerAmounts)
	var detail []types.ConcentrationDetail
	for _, k := range triples {
		year := byBuyerYear[k.buyerYear]
		// a buyer with a single award that year cannot be concentrated
		if year.count <= 1 {
			continue
		}
		t := byTriple[k]
		topBuyers.add(k.bidder, k.buyer.Name, t.sum)

		d := types.ConcentrationDetail{
			Buyer:                     k.buyer,
			BuyerPaymentsAllTime:      buyerAllTime[k.buyer],
			Year:                      k.year,
			Bidder:                    k.bidder,
			BuyerTendersInYear:        year.count,
			BidderTendersInYear:       t.count,
			PctTendersToBidderInYear:  stats.SafeRatio(float64(t.count), float64(year.count)),
			BuyerPaymentsInYear:       year.sum,
			PaidToBidderInYear:        t.sum,
			PctPaymentsToBidderInYear: stats.SafeRatio(t.sum, year.sum),
		}
		concentrated := d.PctPaymentsToBidderInYear > opts.ShareThreshold || d.PctTendersToBidderInYear > opts.ShareThreshold
		if concentrated && d.PaidToBidderInYear > opts.MinPayment {
			detail = append(detail, d)
		}
	}

	sortConcentrationDetail(detail)

	rollup := make(map[types.BidderKey]*concentrationRollup)
	for _, d := range detail {
		r, ok := rollup[d.Bidder]
		if !ok {
			r = &concentrationRollup{}
			rollup[d.Bidder] = r
		}
		r.count++
		r.dollars += d.PaidToBidderInYear
		r.pctTender += d.PctTendersToBidderInYear
		r.pctPay += d.PctPaymentsToBidderInYear
	}

	keys := sortedKeys(rollup)
	rows := make([]types.ConcentrationRow, 0, len(keys))
	tenderShares := make([]float64, 0, len(keys))
	paymentShares := make([]float64, 0, len(keys))
	for _, key := range keys {
		r := rollup[key]
		row := types.ConcentrationRow{
			BidderKey:        key,
			Count:            r.count,
			DollarsAtRisk:    r.dollars,
			TotalPctTenders:  r.pctTender,
			TotalPctPayments: r.pctPay,
		}
		row.TopBuyer, row.TotalPaidByTopBuyer = topBuyers.top(key)
		rows = append(rows, row)
		tenderShares = append(tenderShares, r.pctTender)
		paymentShares = append(paymentShares, r.pctPay)
	}

	tenderRanks := stats.PercentileRank(tenderShares)
	paymentRanks := stats.PercentileRank(paymentShares)
	for i := range rows {
		rows[i].RiskScore = tenderRanks[i] * paymentRanks[i] * 100
	}

	sortByScore(rows,
		func(r types.ConcentrationRow) types.BidderKey { return r.BidderKey },
		func(r types.ConcentrationRow) float64 { return r.RiskScore })

	return &types.ConcentrationResult{
		Detail:  detail,
		Summary: rows,
	}
}

// sortConcentrationDetail orders rows by the buyer's all-time payments,
// then year, then payment share, all descending
func sortConcentrationDetail(detail []types.ConcentrationDetail) {
	sort.SliceStable(detail, func(i, j int) bool {
		a, b := detail[i], detail[j]
		if a.BuyerPaymentsAllTime != b.BuyerPaymentsAllTime {
			return a.BuyerPaymentsAllTime > b.BuyerPaymentsAllTime
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.PctPaymentsToBidderInYear != b.PctPaymentsToBidderInYear {
			return a.PctPaymentsToBidderInYear > b.PctPaymentsToBidderInYear
		}
		if a.Buyer != b.Buyer {
			return a.Buyer.Less(b.Buyer)
		}
		return a.Bidder.Less(b.Bidder)
	})
}

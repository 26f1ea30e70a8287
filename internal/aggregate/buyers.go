package aggregate

import (
	"sort"

	"github.com/su1ph3r/procrisk/pkg/types"
)

type buyerStats struct {
	tenders int
	payouts float64
	bidders map[types.BidderKey]*buyerTally
	names   map[string]bool
}

// SummarizeBuyers builds one row per buyer with its award totals and the
// bidder it paid the most, sorted by descending payouts
func SummarizeBuyers(table types.RecordTable) []types.BuyerSummaryRow {
	byBuyer := make(map[types.BuyerKey]*buyerStats)
	for _, r := range table {
		s, ok := byBuyer[r.Buyer]
		if !ok {
			s = &buyerStats{
				bidders: make(map[types.BidderKey]*buyerTally),
				names:   make(map[string]bool),
			}
			byBuyer[r.Buyer] = s
		}
		s.tenders++
		s.payouts += r.PriceUSD
		s.names[r.Bidder.Name] = true

		b, ok := s.bidders[r.Bidder]
		if !ok {
			b = &buyerTally{}
			s.bidders[r.Bidder] = b
		}
		b.tenders++
		b.payments += r.PriceUSD
	}

	keys := make([]types.BuyerKey, 0, len(byBuyer))
	for k := range byBuyer {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows := make([]types.BuyerSummaryRow, 0, len(keys))
	for _, key := range keys {
		s := byBuyer[key]
		row := types.BuyerSummaryRow{
			BuyerKey:            key,
			TotalTendersAwarded: s.tenders,
			TotalPayouts:        s.payouts,
			TotalBidders:        len(s.names),
		}

		var (
			top   types.BidderKey
			tally *buyerTally
		)
		for bidder, b := range s.bidders {
			if tally == nil || b.payments > tally.payments || (b.payments == tally.payments && bidder.Less(top)) {
				top, tally = bidder, b
			}
		}
		if tally != nil {
			row.TopBidder = top.Name
			row.TopBidderCountry = top.Country
			row.TotalPaidToTopBidder = tally.payments
			row.TotalTendersToTopBidder = tally.tenders
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalPayouts > rows[j].TotalPayouts
	})
	return rows
}

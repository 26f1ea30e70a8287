// Package detector derives the four bidder-level risk signals from a cleaned
// record table. Detectors never mutate their input and never log; the same
// table and options always produce the same result.
package detector

import (
	"sort"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// bidderTotals holds all-time activity for one bidder
type bidderTotals struct {
	tenders  int
	payments float64
}

// totalsByBidder sums tenders and payments per bidder over table
func totalsByBidder(table types.RecordTable) map[types.BidderKey]*bidderTotals {
	totals := make(map[types.BidderKey]*bidderTotals)
	for _, r := range table {
		t, ok := totals[r.Bidder]
		if !ok {
			t = &bidderTotals{}
			totals[r.Bidder] = t
		}
		t.tenders++
		t.payments += r.PriceUSD
	}
	return totals
}

// sortedKeys returns the keys of m ordered by name, then country
func sortedKeys[V any](m map[types.BidderKey]V) []types.BidderKey {
	keys := make([]types.BidderKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// topEntry returns the name with the largest amount. Ties go to the
// lexicographically smallest name.
func topEntry(amounts map[string]float64) (string, float64) {
	var (
		best   string
		amount float64
		found  bool
	)
	for name, v := range amounts {
		if !found || v > amount || (v == amount && name < best) {
			best, amount, found = name, v, true
		}
	}
	return best, amount
}

// buyerAmounts accumulates payments per buyer name for each bidder
type buyerAmounts map[types.BidderKey]map[string]float64

func (b buyerAmounts) add(bidder types.BidderKey, buyer string, amount float64) {
	m, ok := b[bidder]
	if !ok {
		m = make(map[string]float64)
		b[bidder] = m
	}
	m[buyer] += amount
}

func (b buyerAmounts) top(bidder types.BidderKey) (string, float64) {
	return topEntry(b[bidder])
}

// sortByScore orders rows by descending score. Rows with equal scores keep
// their bidder-key order.
func sortByScore[T any](rows []T, key func(T) types.BidderKey, score func(T) float64) {
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := score(rows[i]), score(rows[j])
		if si != sj {
			return si > sj
		}
		return key(rows[i]).Less(key(rows[j]))
	})
}

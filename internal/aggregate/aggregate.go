// Package aggregate combines the detector summaries into one composite
// bidder ranking and builds the buyer-level summary
package aggregate

import (
	"sort"

	"github.com/su1ph3r/procrisk/internal/stats"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// Signals holds the component scores available for a run. A nil slice means
// the detector produced no output; it is treated the same as an empty one.
type Signals struct {
	NonCompetitive        []types.ComponentScore
	SpendingConcentration []types.ComponentScore
	ShortBidWindow        []types.ComponentScore
	ContractSplitting     []types.ComponentScore
}

func (s Signals) byComponent() map[types.Component][]types.ComponentScore {
	return map[types.Component][]types.ComponentScore{
		types.ComponentNonCompetitive:        s.NonCompetitive,
		types.ComponentSpendingConcentration: s.SpendingConcentration,
		types.ComponentShortBidWindow:        s.ShortBidWindow,
		types.ComponentContractSplitting:     s.ContractSplitting,
	}
}

// bidderContext is the base row every bidder gets from the record table
type bidderContext struct {
	tenders    int
	payments   float64
	buyers     map[string]*buyerTally
	buyerOrder []string
}

type buyerTally struct {
	tenders  int
	payments float64
}

// Aggregate builds one composite row per bidder in table, sorted by
// descending composite score with minimum ranks attached
func Aggregate(table types.RecordTable, signals Signals) []types.CompositeRiskRecord {
	contexts := make(map[types.BidderKey]*bidderContext)
	for _, r := range table {
		c, ok := contexts[r.Bidder]
		if !ok {
			c = &bidderContext{buyers: make(map[string]*buyerTally)}
			contexts[r.Bidder] = c
		}
		c.tenders++
		c.payments += r.PriceUSD
		b, ok := c.buyers[r.Buyer.Name]
		if !ok {
			b = &buyerTally{}
			c.buyers[r.Buyer.Name] = b
			c.buyerOrder = append(c.buyerOrder, r.Buyer.Name)
		}
		b.tenders++
		b.payments += r.PriceUSD
	}
	order := table.Bidders()
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	records := make([]types.CompositeRiskRecord, len(order))
	for i, key := range order {
		c := contexts[key]
		rec := types.CompositeRiskRecord{
			BidderKey:       key,
			TotalTendersWon: c.tenders,
			TotalPayments:   c.payments,
			TotalBuyers:     len(c.buyers),
		}
		rec.TopBuyer, rec.TotalPaidByTopBuyer, rec.TotalTendersFromTopBuyer = c.topBuyer()
		records[i] = rec
	}

	// unrounded component scores and dollars per record, zero-filled
	scores := make(map[types.Component][]float64, len(types.Components))
	for component, rows := range signals.byComponent() {
		joined := OuterJoin(order, rows)
		col := make([]float64, len(order))
		for i, cs := range joined {
			col[i] = cs.Score
			setDollars(&records[i], component, cs.DollarsAtRisk)
		}
		scores[component] = normalizeScale(col)
	}

	row := make([]float64, len(types.Components))
	for i := range records {
		for j, component := range types.Components {
			s := scores[component][i]
			row[j] = s
			if s > 0 {
				records[i].NumFlags++
			}
			setScore(&records[i], component, stats.Round1(s))
		}
		// every component counts toward the mean, zero-filled or not. A mean
		// under 0.05 rounds to 0 even when NumFlags is positive.
		records[i].TotalRiskScore = stats.Round1(stats.Mean(row))
		records[i].TotalDollarsAtRisk = stats.Sum([]float64{
			records[i].NonCompetitiveDollarsAtRisk,
			records[i].SpendingConcentrationDollarsAtRisk,
			records[i].ShortBidWindowDollarsAtRisk,
			records[i].ContractSplittingDollarsAtRisk,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TotalRiskScore > records[j].TotalRiskScore
	})
	composite := make([]float64, len(records))
	for i, r := range records {
		composite[i] = r.TotalRiskScore
	}
	for i, rank := range stats.MinRank(composite) {
		records[i].Rank = rank
	}
	return records
}

// OuterJoin aligns rows to keys: the result has one entry per key, holding
// the matching row or a zero score when the key has none
func OuterJoin(keys []types.BidderKey, rows []types.ComponentScore) []types.ComponentScore {
	index := make(map[types.BidderKey]types.ComponentScore, len(rows))
	for _, r := range rows {
		if _, dup := index[r.Bidder]; !dup {
			index[r.Bidder] = r
		}
	}
	out := make([]types.ComponentScore, len(keys))
	for i, k := range keys {
		if r, ok := index[k]; ok {
			out[i] = r
		} else {
			out[i] = types.ComponentScore{Bidder: k}
		}
	}
	return out
}

// normalizeScale rescales a score column reported as fractions to 0-100.
// A column whose maximum is at most 1.0 is treated as fractional.
func normalizeScale(col []float64) []float64 {
	if len(col) == 0 {
		return col
	}
	peak := col[0]
	for _, v := range col[1:] {
		if v > peak {
			peak = v
		}
	}
	if peak > 1.0 {
		return col
	}
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = stats.Round1(v * 100)
	}
	return out
}

func (c *bidderContext) topBuyer() (string, float64, int) {
	var (
		best  string
		tally *buyerTally
	)
	for _, name := range c.buyerOrder {
		b := c.buyers[name]
		if tally == nil || b.payments > tally.payments || (b.payments == tally.payments && name < best) {
			best, tally = name, b
		}
	}
	if tally == nil {
		return "", 0, 0
	}
	return best, tally.payments, tally.tenders
}

func setScore(r *types.CompositeRiskRecord, c types.Component, v float64) {
	switch c {
	case types.ComponentNonCompetitive:
		r.NonCompetitiveRiskScore = v
	case types.ComponentSpendingConcentration:
		r.SpendingConcentrationRiskScore = v
	case types.ComponentShortBidWindow:
		r.ShortBidWindowRiskScore = v
	case types.ComponentContractSplitting:
		r.ContractSplittingRiskScore = v
	}
}

func setDollars(r *types.CompositeRiskRecord, c types.Component, v float64) {
	switch c {
	case types.ComponentNonCompetitive:
		r.NonCompetitiveDollarsAtRisk = v
	case types.ComponentSpendingConcentration:
		r.SpendingConcentrationDollarsAtRisk = v
	case types.ComponentShortBidWindow:
		r.ShortBidWindowDollarsAtRisk = v
	case types.ComponentContractSplitting:
		r.ContractSplittingDollarsAtRisk = v
	}
}

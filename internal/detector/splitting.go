package detector

import (
	"sort"
	"time"

	"github.com/su1ph3r/procrisk/internal/stats"
	"github.com/su1ph3r/procrisk/internal/textnorm"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// SplitOptions holds the contract splitting parameters
type SplitOptions struct {
	ApprovalThreshold   float64 // oversight threshold awards try to stay under
	TimeWindowDays      int     // maximum span of a cluster
	SimilarityThreshold float64 // minimum title similarity for an edge
	MinClusterValue     float64 // clusters below this total are immaterial
}

// DefaultSplitOptions returns the standard parameters
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{
		ApprovalThreshold:   10_000_000,
		TimeWindowDays:      7,
		SimilarityThreshold: 0.5,
		MinClusterValue:     1_000_000,
	}
}

// SplitOptionsFromConfig extracts detector options from config
func SplitOptionsFromConfig(cfg *types.Config) SplitOptions {
	return SplitOptions{
		ApprovalThreshold:   cfg.ContractSplit.ApprovalThreshold,
		TimeWindowDays:      cfg.ContractSplit.TimeWindowDays,
		SimilarityThreshold: cfg.ContractSplit.SimilarityThreshold,
		MinClusterValue:     cfg.ContractSplit.MinClusterValue,
	}
}

func (o SplitOptions) window() time.Duration {
	return time.Duration(o.TimeWindowDays) * 24 * time.Hour
}

// EffectiveAwardDate returns the award decision date, falling back to the
// bid deadline, first contract award and contract signature dates in that order
func EffectiveAwardDate(r types.TenderRecord) *time.Time {
	return types.FirstDate(r.AwardDecisionDate, r.BidDeadline, r.FirstContractAwardDate, r.ContractSignatureDate)
}

// candidate is one sub-threshold award considered for clustering
type candidate struct {
	seq    int // position in the input table
	record types.TenderRecord
	date   time.Time
	title  string // normalized
}

// DetectContractSplitting groups similar, temporally close sub-threshold
// awards to bidders whose total business exceeds the approval threshold
func DetectContractSplitting(table types.RecordTable, opts SplitOptions) *types.SplitResult {
	totals := totalsByBidder(table)

	groups := make(map[types.BidderKey][]candidate)
	for i, r := range table {
		if totals[r.Bidder].payments < opts.ApprovalThreshold || r.PriceUSD >= opts.ApprovalThreshold {
			continue
		}
		date := EffectiveAwardDate(r)
		if date == nil {
			// an undated award can never be within the window of another
			continue
		}
		groups[r.Bidder] = append(groups[r.Bidder], candidate{
			seq:    i,
			record: r,
			date:   *date,
			title:  textnorm.NormalizeTitle(r.Title),
		})
	}

	result := &types.SplitResult{}
	for _, bidder := range sortedKeys(groups) {
		for _, members := range clusterGroup(groups[bidder], opts) {
			c := buildCluster(bidder, members)
			if c.TotalValueUSD < opts.MinClusterValue {
				continue
			}
			c.ClusterID = len(result.Clusters) + 1
			result.Clusters = append(result.Clusters, c)
		}
	}

	result.Summary = summarizeClusters(result.Clusters)
	return result
}

// clusterGroup returns the sub-clusters of two or more members for one
// bidder's candidates
func clusterGroup(group []candidate, opts SplitOptions) [][]candidate {
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].date.Equal(group[j].date) {
			return group[i].date.Before(group[j].date)
		}
		return group[i].seq < group[j].seq
	})

	window := opts.window()
	uf := newUnionFind(len(group))
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			// sorted by date: every later j is at least as far away
			if group[j].date.Sub(group[i].date) > window {
				break
			}
			if TitleSimilarity(group[i].title, group[j].title) >= opts.SimilarityThreshold {
				uf.union(i, j)
			}
		}
	}

	var out [][]candidate
	for _, component := range uf.components() {
		if len(component) < 2 {
			continue
		}
		// component indexes are ascending, so members are already in date order
		var current []candidate
		var earliest time.Time
		for _, idx := range component {
			c := group[idx]
			if len(current) > 0 && c.date.Sub(earliest) > window {
				out = appendCluster(out, current)
				current = nil
			}
			if len(current) == 0 {
				earliest = c.date
			}
			current = append(current, c)
		}
		out = appendCluster(out, current)
	}
	return out
}

func appendCluster(out [][]candidate, members []candidate) [][]candidate {
	if len(members) < 2 {
		return out
	}
	return append(out, members)
}

func buildCluster(bidder types.BidderKey, members []candidate) types.ContractCluster {
	c := types.ContractCluster{
		Bidder:            bidder,
		NumberOfContracts: len(members),
		EarliestAwardDate: members[0].date,
		LatestAwardDate:   members[0].date,
	}

	seenBuyer := make(map[string]bool)
	for _, m := range members {
		c.TotalValueUSD += m.record.PriceUSD
		c.TenderIDs = append(c.TenderIDs, m.record.TenderID)
		c.TenderTitles = append(c.TenderTitles, m.record.Title)
		c.AwardDates = append(c.AwardDates, m.date)
		c.ValuesUSD = append(c.ValuesUSD, m.record.PriceUSD)
		if !seenBuyer[m.record.Buyer.Name] {
			seenBuyer[m.record.Buyer.Name] = true
			c.Buyers = append(c.Buyers, m.record.Buyer.Name)
		}
		if m.date.Before(c.EarliestAwardDate) {
			c.EarliestAwardDate = m.date
		}
		if m.date.After(c.LatestAwardDate) {
			c.LatestAwardDate = m.date
		}
	}
	c.BuyerCount = len(c.Buyers)
	c.DateRangeDays = wholeDays(c.LatestAwardDate.Sub(c.EarliestAwardDate))
	c.AvgContractValue = stats.SafeRatio(c.TotalValueUSD, float64(c.NumberOfContracts))
	return c
}

type splitStats struct {
	clusters     int
	contracts    int
	maxContracts int
	dollars      float64
	maxDollars   float64
}

func summarizeClusters(clusters []types.ContractCluster) []types.SplitRow {
	agg := make(map[types.BidderKey]*splitStats)
	for _, c := range clusters {
		s, ok := agg[c.Bidder]
		if !ok {
			s = &splitStats{}
			agg[c.Bidder] = s
		}
		s.clusters++
		s.contracts += c.NumberOfContracts
		s.dollars += c.TotalValueUSD
		if c.NumberOfContracts > s.maxContracts {
			s.maxContracts = c.NumberOfContracts
		}
		if c.TotalValueUSD > s.maxDollars {
			s.maxDollars = c.TotalValueUSD
		}
	}

	keys := sortedKeys(agg)
	rows := make([]types.SplitRow, 0, len(keys))
	counts := make([]float64, 0, len(keys))
	avgs := make([]float64, 0, len(keys))
	for _, key := range keys {
		s := agg[key]
		row := types.SplitRow{
			BidderKey:              key,
			ClustersCount:          s.clusters,
			AvgContractsPerCluster: stats.SafeRatio(float64(s.contracts), float64(s.clusters)),
			MaxContractsInCluster:  s.maxContracts,
			AvgPaymentPerCluster:   stats.SafeRatio(s.dollars, float64(s.clusters)),
			MaxClusterPayment:      s.maxDollars,
			DollarsAtRisk:          s.dollars,
		}
		rows = append(rows, row)
		counts = append(counts, float64(row.ClustersCount))
		avgs = append(avgs, row.AvgContractsPerCluster)
	}

	countRanks := stats.PercentileRank(counts)
	avgRanks := stats.PercentileRank(avgs)
	for i := range rows {
		rows[i].RiskScore = 100 * countRanks[i] * avgRanks[i]
	}

	sortByScore(rows,
		func(r types.SplitRow) types.BidderKey { return r.BidderKey },
		func(r types.SplitRow) float64 { return r.RiskScore })
	return rows
}

// unionFind is a disjoint-set forest over 0..n-1
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// components returns the sets ordered by their smallest member, each with
// ascending members
func (u *unionFind) components() [][]int {
	index := make(map[int]int)
	var out [][]int
	for i := range u.parent {
		root := u.find(i)
		pos, ok := index[root]
		if !ok {
			pos = len(out)
			index[root] = pos
			out = append(out, nil)
		}
		out[pos] = append(out[pos], i)
	}
	return out
}

package detector

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/su1ph3r/procrisk/pkg/types"
)

var base = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) *time.Time {
	t := base.AddDate(0, 0, n)
	return &t
}

func bidder(name string) types.BidderKey {
	return types.BidderKey{Name: name, Country: "MX"}
}

func buyer(name string) types.BuyerKey {
	return types.BuyerKey{Name: name, Country: "MX"}
}

func record(id, bidderName, buyerName string, price float64) types.TenderRecord {
	return types.TenderRecord{
		TenderID: id,
		Title:    "TENDER " + id,
		Year:     2021,
		Buyer:    buyer(buyerName),
		Bidder:   bidder(bidderName),
		PriceUSD: price,
	}
}

func nonComp(r types.TenderRecord) types.TenderRecord {
	r.NonCompetitive = true
	r.ProcedureType = "LIMITED"
	return r
}

func assertFinite(t *testing.T, label string, values ...float64) {
	t.Helper()
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s: non-finite value %v", label, v)
		}
	}
}

func TestDetectNonCompetitiveScenario(t *testing.T) {
	var table types.RecordTable
	for i := 0; i < 3; i++ {
		table = append(table, nonComp(record(fmt.Sprintf("NC%d", i), "ACME", "CITY X", 2_000_000)))
	}
	for i := 0; i < 7; i++ {
		table = append(table, record(fmt.Sprintf("C%d", i), "ACME", "CITY Y", 100_000))
	}

	result := DetectNonCompetitive(table, DefaultNonCompetitiveOptions())
	if len(result.Summary) != 1 {
		t.Fatalf("expected 1 bidder, got %d", len(result.Summary))
	}
	row := result.Summary[0]
	if row.NonCompetitiveTendersWon != 3 || row.TotalTendersWon != 10 {
		t.Errorf("won = %d/%d, want 3/10", row.NonCompetitiveTendersWon, row.TotalTendersWon)
	}
	if math.Abs(row.PctTendersNonCompetitive-0.3) > 1e-9 {
		t.Errorf("pct = %v, want 0.3", row.PctTendersNonCompetitive)
	}
	if row.NonCompetitiveDollarsAtRisk != 6_000_000 || row.MostExpensiveNonCompetitive != 2_000_000 {
		t.Errorf("dollars = %v max = %v", row.NonCompetitiveDollarsAtRisk, row.MostExpensiveNonCompetitive)
	}
	if row.TopBuyer != "CITY X" || row.TotalPaidByTopBuyer != 6_000_000 {
		t.Errorf("top buyer = %s %v, want CITY X 6000000", row.TopBuyer, row.TotalPaidByTopBuyer)
	}
	if math.Abs(row.RiskScore-30) > 1e-9 {
		t.Errorf("score = %v, want 30", row.RiskScore)
	}
	if len(result.Tenders) != 3 {
		t.Errorf("detail tenders = %d, want 3", len(result.Tenders))
	}
}

func TestDetectNonCompetitiveFilterIdempotence(t *testing.T) {
	table := types.RecordTable{
		nonComp(record("1", "ALPHA", "B1", 5_000_000)),
		nonComp(record("2", "ALPHA", "B1", 500_000)),
		record("3", "ALPHA", "B2", 1_000_000),
		// below the per-tender threshold
		nonComp(record("4", "BETA", "B1", 900_000)),
		nonComp(record("5", "BETA", "B1", 900_000)),
		// total below the dollar threshold
		nonComp(record("6", "GAMMA", "B1", 999_999)),
		// no non-competitive tenders at all
		record("7", "DELTA", "B1", 50_000_000),
		nonComp(record("8", "EPSILON", "B3", 3_000_000)),
	}
	opts := DefaultNonCompetitiveOptions()
	result := DetectNonCompetitive(table, opts)

	got := make(map[string]bool)
	for _, row := range result.Summary {
		if !opts.Qualifies(row) {
			t.Errorf("row for %s fails the inclusion filter", row.Name)
		}
		assertFinite(t, row.Name, row.PctPaymentsNonCompetitive, row.PctTendersNonCompetitive, row.RiskScore, row.AvgPriceNonCompetitive)
		got[row.Name] = true
	}
	if !got["ALPHA"] || !got["EPSILON"] || len(got) != 2 {
		t.Errorf("qualifying bidders = %v, want ALPHA and EPSILON", got)
	}

	for i := 1; i < len(result.Summary); i++ {
		if result.Summary[i-1].RiskScore < result.Summary[i].RiskScore {
			t.Error("summary not sorted by descending score")
		}
	}
}

func TestDetectNonCompetitiveEmpty(t *testing.T) {
	result := DetectNonCompetitive(types.RecordTable{record("1", "A", "B", 10)}, DefaultNonCompetitiveOptions())
	if len(result.Summary) != 0 || len(result.Tenders) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if len(result.Components()) != 0 {
		t.Error("expected no component scores")
	}
}

func TestDetectSpendingConcentrationScenario(t *testing.T) {
	table := types.RecordTable{
		record("1", "BETACO", "CITYX", 1_500_000),
		record("2", "BETACO", "CITYX", 1_500_000),
		record("3", "GAMMA", "CITYX", 2_500_000),
		record("4", "DELTA", "CITYX", 2_500_000),
		record("5", "EPSILON", "CITYX", 2_000_000),
		// single award in its year for this buyer: never concentrated
		record("6", "ZETA", "TOWNY", 9_000_000),
		// non-competitive awards are out of scope
		nonComp(record("7", "BETACO", "CITYX", 50_000_000)),
	}

	result := DetectSpendingConcentration(table, DefaultConcentrationOptions())

	var beta *types.ConcentrationDetail
	for i := range result.Detail {
		d := result.Detail[i]
		if d.Bidder.Name == "ZETA" {
			t.Error("single-award buyer-year should be filtered as noise")
		}
		if d.Bidder.Name == "BETACO" {
			beta = &result.Detail[i]
		}
	}
	if beta == nil {
		t.Fatal("BETACO should be flagged")
	}
	if beta.BuyerTendersInYear != 5 || beta.BidderTendersInYear != 2 {
		t.Errorf("tenders = %d/%d, want 2/5", beta.BidderTendersInYear, beta.BuyerTendersInYear)
	}
	if math.Abs(beta.PctPaymentsToBidderInYear-0.3) > 1e-9 || math.Abs(beta.PctTendersToBidderInYear-0.4) > 1e-9 {
		t.Errorf("shares = %v/%v, want 0.3/0.4", beta.PctPaymentsToBidderInYear, beta.PctTendersToBidderInYear)
	}
	if beta.BuyerPaymentsInYear != 10_000_000 || beta.PaidToBidderInYear != 3_000_000 {
		t.Errorf("payments = %v/%v", beta.PaidToBidderInYear, beta.BuyerPaymentsInYear)
	}

	var row *types.ConcentrationRow
	for i := range result.Summary {
		if result.Summary[i].Name == "BETACO" {
			row = &result.Summary[i]
		}
		s := result.Summary[i].RiskScore
		if s < 0 || s > 100 {
			t.Errorf("score out of range: %v", s)
		}
	}
	if row == nil {
		t.Fatal("BETACO missing from summary")
	}
	if row.Count != 1 || row.DollarsAtRisk != 3_000_000 || row.TopBuyer != "CITYX" {
		t.Errorf("unexpected BETACO summary: %+v", row)
	}
}

func TestDetectSpendingConcentrationMinPayment(t *testing.T) {
	table := types.RecordTable{
		record("1", "SMALL", "CITYX", 900_000),
		record("2", "BIG", "CITYX", 9_000_000),
	}
	result := DetectSpendingConcentration(table, DefaultConcentrationOptions())
	for _, d := range result.Detail {
		if d.Bidder.Name == "SMALL" {
			t.Error("payments at or below the floor should not be flagged")
		}
	}
	if len(result.Summary) != 1 || result.Summary[0].Name != "BIG" {
		t.Errorf("summary = %+v, want only BIG", result.Summary)
	}
}

func windowRecord(id, bidderName string, window int, price float64) types.TenderRecord {
	r := record(id, bidderName, "CITYX", price)
	r.PublicationDate = day(0)
	r.BidDeadline = day(window)
	return r
}

func TestDetectShortBidWindows(t *testing.T) {
	var table types.RecordTable
	for i := 1; i <= 10; i++ {
		table = append(table, windowRecord(fmt.Sprintf("W%d", i), "LONGCO", i*10, 2_000_000))
	}
	table[0].Bidder = bidder("FASTCO")

	// fallbacks and exclusions
	fallback := windowRecord("F1", "FASTCO", 0, 2_000_000)
	fallback.BidDeadline = nil
	fallback.AwardDecisionDate = day(5)
	noPub := windowRecord("X1", "FASTCO", 3, 2_000_000)
	noPub.PublicationDate = nil
	cheap := windowRecord("X2", "FASTCO", 3, 999_999)
	tooLong := windowRecord("X3", "FASTCO", 400, 2_000_000)
	negative := windowRecord("X4", "FASTCO", -2, 2_000_000)
	limited := nonComp(windowRecord("X5", "FASTCO", 2, 2_000_000))
	table = append(table, fallback, noPub, cheap, tooLong, negative, limited)

	result := DetectShortBidWindows(table, DefaultShortWindowOptions())

	if len(result.Population) != 11 {
		t.Fatalf("population = %d, want 11", len(result.Population))
	}
	// windows 5,10,20..100: q10 position 1.0 -> 10
	if !result.HasThreshold || math.Abs(result.Threshold-10) > 1e-9 {
		t.Fatalf("threshold = %v (%v), want 10", result.Threshold, result.HasThreshold)
	}
	if len(result.Flagged) != 1 || result.Flagged[0].TenderID != "F1" {
		t.Fatalf("flagged = %+v, want only F1", result.Flagged)
	}
	if !result.Flagged[0].EffectiveDeadline.Equal(*day(5)) {
		t.Errorf("effective deadline = %v, want award decision date", result.Flagged[0].EffectiveDeadline)
	}

	if len(result.Summary) != 1 {
		t.Fatalf("summary = %d rows, want 1", len(result.Summary))
	}
	row := result.Summary[0]
	if row.Name != "FASTCO" || row.Count != 1 || row.MinWindowDays != 5 || row.AvgWindowDays != 5 {
		t.Errorf("unexpected summary row: %+v", row)
	}
	if row.TopBuyer != "CITYX" || row.TopBuyerPayments != 2_000_000 {
		t.Errorf("top buyer = %s %v", row.TopBuyer, row.TopBuyerPayments)
	}
}

func TestDetectShortBidWindowsScoreFavorsShortWindows(t *testing.T) {
	var table types.RecordTable
	add := func(id, name string, window int) {
		table = append(table, windowRecord(id, name, window, 1_000_000))
	}
	for i := 0; i < 40; i++ {
		add(fmt.Sprintf("P%d", i), "PEER", 60)
	}
	add("A1", "QUICK", 1)
	add("A2", "QUICK", 1)
	add("B1", "SLOW", 5)

	result := DetectShortBidWindows(table, DefaultShortWindowOptions())
	if len(result.Summary) != 2 {
		t.Fatalf("summary rows = %d, want 2", len(result.Summary))
	}
	if result.Summary[0].Name != "QUICK" {
		t.Errorf("QUICK should rank first, got %s", result.Summary[0].Name)
	}
	// QUICK: count rank 1.0, avg rank 0.5 -> 50; SLOW: 0.5 * 0 -> 0
	if math.Abs(result.Summary[0].RiskScore-50) > 1e-9 || result.Summary[1].RiskScore != 0 {
		t.Errorf("scores = %v, %v; want 50, 0", result.Summary[0].RiskScore, result.Summary[1].RiskScore)
	}
}

func TestDetectShortBidWindowsEmptyPopulation(t *testing.T) {
	result := DetectShortBidWindows(types.RecordTable{record("1", "A", "B", 5_000_000)}, DefaultShortWindowOptions())
	if result.HasThreshold || len(result.Flagged) != 0 || len(result.Summary) != 0 {
		t.Errorf("expected no threshold and no flags, got %+v", result)
	}
}

func splitRecord(id, bidderName, title string, awardDay int, price float64) types.TenderRecord {
	r := record(id, bidderName, "CITYX", price)
	r.Title = title
	r.AwardDecisionDate = day(awardDay)
	return r
}

func TestDetectContractSplittingScenario(t *testing.T) {
	table := types.RecordTable{
		splitRecord("BIG", "ROADCO", "Highway Construction", 100, 10_000_000),
		splitRecord("R1", "ROADCO", "Road Repair Phase 1", 0, 600_000),
		splitRecord("R2", "ROADCO", "Road Repair Phase 2", 3, 600_000),
	}

	result := DetectContractSplitting(table, DefaultSplitOptions())
	if len(result.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(result.Clusters))
	}
	c := result.Clusters[0]
	if c.ClusterID != 1 || c.NumberOfContracts != 2 || c.TotalValueUSD != 1_200_000 {
		t.Errorf("unexpected cluster: %+v", c)
	}
	if !reflect.DeepEqual(c.TenderIDs, []string{"R1", "R2"}) {
		t.Errorf("members = %v, want [R1 R2]", c.TenderIDs)
	}
	if c.DateRangeDays != 3 || c.BuyerCount != 1 || c.AvgContractValue != 600_000 {
		t.Errorf("range = %d buyers = %d avg = %v", c.DateRangeDays, c.BuyerCount, c.AvgContractValue)
	}

	if len(result.Summary) != 1 {
		t.Fatalf("summary = %d, want 1", len(result.Summary))
	}
	row := result.Summary[0]
	if row.ClustersCount != 1 || row.MaxContractsInCluster != 2 || row.DollarsAtRisk != 1_200_000 {
		t.Errorf("unexpected summary: %+v", row)
	}
	if math.Abs(row.RiskScore-100) > 1e-9 {
		t.Errorf("score = %v, want 100", row.RiskScore)
	}
}

func TestDetectContractSplittingRepartitionsLongChains(t *testing.T) {
	table := types.RecordTable{
		splitRecord("BIG", "ROADCO", "Unrelated", 200, 10_000_000),
		splitRecord("A", "ROADCO", "Paving Works", 0, 600_000),
		splitRecord("B", "ROADCO", "Paving Works", 5, 600_000),
		splitRecord("C", "ROADCO", "Paving Works", 10, 600_000),
	}

	result := DetectContractSplitting(table, DefaultSplitOptions())
	if len(result.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(result.Clusters))
	}
	if !reflect.DeepEqual(result.Clusters[0].TenderIDs, []string{"A", "B"}) {
		t.Errorf("members = %v, want [A B]", result.Clusters[0].TenderIDs)
	}
}

func TestDetectContractSplittingExclusions(t *testing.T) {
	tests := []struct {
		name  string
		table types.RecordTable
	}{
		{
			name: "bidder below approval threshold",
			table: types.RecordTable{
				splitRecord("R1", "SMALLCO", "Road Repair Phase 1", 0, 600_000),
				splitRecord("R2", "SMALLCO", "Road Repair Phase 2", 3, 600_000),
			},
		},
		{
			name: "cluster below materiality floor",
			table: types.RecordTable{
				splitRecord("BIG", "ROADCO", "Unrelated", 200, 10_000_000),
				splitRecord("R1", "ROADCO", "Road Repair Phase 1", 0, 400_000),
				splitRecord("R2", "ROADCO", "Road Repair Phase 2", 3, 400_000),
			},
		},
		{
			name: "outside time window",
			table: types.RecordTable{
				splitRecord("BIG", "ROADCO", "Unrelated", 200, 10_000_000),
				splitRecord("R1", "ROADCO", "Road Repair Phase 1", 0, 600_000),
				splitRecord("R2", "ROADCO", "Road Repair Phase 2", 8, 600_000),
			},
		},
		{
			name: "dissimilar titles",
			table: types.RecordTable{
				splitRecord("BIG", "ROADCO", "Unrelated", 200, 10_000_000),
				splitRecord("R1", "ROADCO", "Road Repair", 0, 600_000),
				splitRecord("R2", "ROADCO", "Toner Cartridges", 1, 600_000),
			},
		},
		{
			name: "undated awards",
			table: func() types.RecordTable {
				a := splitRecord("R1", "ROADCO", "Road Repair Phase 1", 0, 600_000)
				b := splitRecord("R2", "ROADCO", "Road Repair Phase 2", 0, 600_000)
				a.AwardDecisionDate, b.AwardDecisionDate = nil, nil
				big := splitRecord("BIG", "ROADCO", "Unrelated", 200, 10_000_000)
				return types.RecordTable{big, a, b}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectContractSplitting(tt.table, DefaultSplitOptions())
			if len(result.Clusters) != 0 || len(result.Summary) != 0 {
				t.Errorf("expected no clusters, got %+v", result.Clusters)
			}
		})
	}
}

func TestDetectContractSplittingClusterValidity(t *testing.T) {
	opts := DefaultSplitOptions()
	var table types.RecordTable
	table = append(table, splitRecord("BIG", "ROADCO", "Unrelated", 500, 12_000_000))
	for i := 0; i < 30; i++ {
		title := "Maintenance Lot"
		if i%3 == 0 {
			title = "Maintenance Lots"
		}
		table = append(table, splitRecord(fmt.Sprintf("M%02d", i), "ROADCO", title, i*2, 700_000))
	}

	result := DetectContractSplitting(table, opts)
	if len(result.Clusters) == 0 {
		t.Fatal("expected clusters")
	}
	window := time.Duration(opts.TimeWindowDays) * 24 * time.Hour
	for i, c := range result.Clusters {
		if c.ClusterID != i+1 {
			t.Errorf("cluster id = %d, want %d", c.ClusterID, i+1)
		}
		if c.NumberOfContracts < 2 || len(c.TenderIDs) != c.NumberOfContracts {
			t.Errorf("cluster %d has %d members", c.ClusterID, c.NumberOfContracts)
		}
		if c.TotalValueUSD < opts.MinClusterValue {
			t.Errorf("cluster %d total %v below floor", c.ClusterID, c.TotalValueUSD)
		}
		for _, v := range c.ValuesUSD {
			if v >= opts.ApprovalThreshold {
				t.Errorf("cluster %d member value %v not below approval threshold", c.ClusterID, v)
			}
		}
		if c.LatestAwardDate.Sub(c.EarliestAwardDate) > window {
			t.Errorf("cluster %d spans more than the window", c.ClusterID)
		}
	}
}

func TestDetectorsDeterministic(t *testing.T) {
	var table types.RecordTable
	for i := 0; i < 25; i++ {
		r := splitRecord(fmt.Sprintf("T%02d", i), fmt.Sprintf("BIDDER%d", i%4), fmt.Sprintf("Supply Batch %d", i%5), i, float64(400_000+i*150_000))
		r.Buyer = buyer(fmt.Sprintf("BUYER%d", i%3))
		r.PublicationDate = day(i - 3 - i%7)
		r.BidDeadline = day(i)
		if i%6 == 0 {
			r = nonComp(r)
		}
		table = append(table, r)
	}
	table = append(table, splitRecord("BIG", "BIDDER1", "Other", 0, 20_000_000))

	for name, run := range map[string]func() interface{}{
		"non-competitive": func() interface{} { return DetectNonCompetitive(table, DefaultNonCompetitiveOptions()) },
		"concentration":   func() interface{} { return DetectSpendingConcentration(table, DefaultConcentrationOptions()) },
		"short window":    func() interface{} { return DetectShortBidWindows(table, DefaultShortWindowOptions()) },
		"splitting":       func() interface{} { return DetectContractSplitting(table, DefaultSplitOptions()) },
	} {
		if !reflect.DeepEqual(run(), run()) {
			t.Errorf("%s detector is not deterministic", name)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"road repair", "road repair", 1},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"abcd", "", 0},
		{"road repair phase 1", "road repair phase 2", 36.0 / 38.0},
	}
	for _, tt := range tests {
		got := TitleSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TitleSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if rev := TitleSimilarity(tt.b, tt.a); rev != got {
			t.Errorf("TitleSimilarity not symmetric for %q/%q: %v vs %v", tt.a, tt.b, got, rev)
		}
	}
}

func TestUnionFindComponents(t *testing.T) {
	uf := newUnionFind(6)
	uf.union(4, 1)
	uf.union(2, 5)
	uf.union(5, 4)

	got := uf.components()
	want := [][]int{{0}, {1, 2, 4, 5}, {3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("components = %v, want %v", got, want)
	}
}

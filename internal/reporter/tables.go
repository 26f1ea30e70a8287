package reporter

import (
	"github.com/su1ph3r/procrisk/pkg/types"
)

// cellKind selects how a value is formatted
type cellKind int

const (
	kindText cellKind = iota
	kindInt
	kindMoney
	kindScore
	kindPercent
	kindDecimal
)

type column struct {
	header string
	kind   cellKind
}

// table is one report tab: human-readable headers plus typed rows
type table struct {
	name    string
	columns []column
	rows    [][]any
}

func col(header string, kind cellKind) column {
	return column{header: header, kind: kind}
}

// Tab names in export order
const (
	TabBidderRisk            = "Bidder Risk Summary"
	TabBuyers                = "Buyer Summary"
	TabNonCompetitive        = "Non-Comp Flag"
	TabSpendingConcentration = "Spending Concentration Flag"
	TabShortBidWindow        = "Short Bid Windows Flag"
	TabContractSplitting     = "Contract Splitting Flag"
)

// reportTables lays out every table of report in export order, skipping
// tables with no rows
func reportTables(report *types.RiskReport) []table {
	all := []table{
		bidderRiskTable(report.Composite),
		buyerTable(report.Buyers),
		nonCompetitiveTable(report.NonCompetitive),
		concentrationTable(report.SpendingConcentration),
		shortWindowTable(report.ShortBidWindow),
		splitTable(report.ContractSplitting),
	}
	out := all[:0]
	for _, t := range all {
		if len(t.rows) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func bidderRiskTable(rows []types.CompositeRiskRecord) table {
	t := table{
		name: TabBidderRisk,
		columns: []column{
			col("Rank", kindInt),
			col("Bidder Name", kindText),
			col("Bidder Country", kindText),
			col("Total Risk Score", kindScore),
			col("Total Dollars at Risk", kindMoney),
			col("Number of Flags", kindInt),
			col("Total Tenders Won", kindInt),
			col("Total Payments", kindMoney),
			col("Total Buyers", kindInt),
			col("Top Buyer", kindText),
			col("Total Paid by Top Buyer", kindMoney),
			col("Total Tenders from Top Buyer", kindInt),
			col("Non-Competitive Risk Score", kindScore),
			col("Non-Competitive Dollars at Risk", kindMoney),
			col("Spending Concentration Risk Score", kindScore),
			col("Spending Concentration Dollars at Risk", kindMoney),
			col("Short Bid Window Risk Score", kindScore),
			col("Short Bid Window Dollars at Risk", kindMoney),
			col("Contract Splitting Risk Score", kindScore),
			col("Contract Splitting Dollars at Risk", kindMoney),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Rank, r.Name, r.Country, r.TotalRiskScore, r.TotalDollarsAtRisk, r.NumFlags,
			r.TotalTendersWon, r.TotalPayments, r.TotalBuyers, r.TopBuyer, r.TotalPaidByTopBuyer, r.TotalTendersFromTopBuyer,
			r.NonCompetitiveRiskScore, r.NonCompetitiveDollarsAtRisk,
			r.SpendingConcentrationRiskScore, r.SpendingConcentrationDollarsAtRisk,
			r.ShortBidWindowRiskScore, r.ShortBidWindowDollarsAtRisk,
			r.ContractSplittingRiskScore, r.ContractSplittingDollarsAtRisk,
		})
	}
	return t
}

func buyerTable(rows []types.BuyerSummaryRow) table {
	t := table{
		name: TabBuyers,
		columns: []column{
			col("Buyer Name", kindText),
			col("Buyer Country", kindText),
			col("Total Tenders Awarded", kindInt),
			col("Total Payouts", kindMoney),
			col("Total Bidders", kindInt),
			col("Top Bidder", kindText),
			col("Top Bidder Country", kindText),
			col("Total Paid to Top Bidder", kindMoney),
			col("Total Tenders to Top Bidder", kindInt),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Name, r.Country, r.TotalTendersAwarded, r.TotalPayouts, r.TotalBidders,
			r.TopBidder, r.TopBidderCountry, r.TotalPaidToTopBidder, r.TotalTendersToTopBidder,
		})
	}
	return t
}

func nonCompetitiveTable(rows []types.NonCompetitiveRow) table {
	t := table{
		name: TabNonCompetitive,
		columns: []column{
			col("Bidder Name", kindText),
			col("Bidder Country", kindText),
			col("Risk Score", kindScore),
			col("Non-Competitive Tenders Won", kindInt),
			col("Total Tenders Won", kindInt),
			col("% Tenders Non-Competitive", kindPercent),
			col("Non-Competitive Dollars at Risk", kindMoney),
			col("Total Payments", kindMoney),
			col("% Payments Non-Competitive", kindPercent),
			col("Avg Non-Competitive Price", kindMoney),
			col("Most Expensive Non-Competitive Tender", kindMoney),
			col("Top Buyer", kindText),
			col("Total Paid by Top Buyer", kindMoney),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Name, r.Country, r.RiskScore, r.NonCompetitiveTendersWon, r.TotalTendersWon,
			r.PctTendersNonCompetitive, r.NonCompetitiveDollarsAtRisk, r.TotalPayments,
			r.PctPaymentsNonCompetitive, r.AvgPriceNonCompetitive, r.MostExpensiveNonCompetitive,
			r.TopBuyer, r.TotalPaidByTopBuyer,
		})
	}
	return t
}

func concentrationTable(rows []types.ConcentrationRow) table {
	t := table{
		name: TabSpendingConcentration,
		columns: []column{
			col("Bidder Name", kindText),
			col("Bidder Country", kindText),
			col("Risk Score", kindScore),
			col("Concentrated Buyer-Years", kindInt),
			col("Dollars at Risk", kindMoney),
			col("Total % Tenders", kindPercent),
			col("Total % Payments", kindPercent),
			col("Top Buyer", kindText),
			col("Total Paid by Top Buyer", kindMoney),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Name, r.Country, r.RiskScore, r.Count, r.DollarsAtRisk,
			r.TotalPctTenders, r.TotalPctPayments, r.TopBuyer, r.TotalPaidByTopBuyer,
		})
	}
	return t
}

func shortWindowTable(rows []types.ShortWindowRow) table {
	t := table{
		name: TabShortBidWindow,
		columns: []column{
			col("Bidder Name", kindText),
			col("Bidder Country", kindText),
			col("Risk Score", kindScore),
			col("Short Window Tenders", kindInt),
			col("Avg Window (Days)", kindDecimal),
			col("Min Window (Days)", kindInt),
			col("Avg Payment", kindMoney),
			col("Dollars at Risk", kindMoney),
			col("Top Buyer", kindText),
			col("Top Buyer Payments", kindMoney),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Name, r.Country, r.RiskScore, r.Count, r.AvgWindowDays, r.MinWindowDays,
			r.AvgPayment, r.DollarsAtRisk, r.TopBuyer, r.TopBuyerPayments,
		})
	}
	return t
}

func splitTable(rows []types.SplitRow) table {
	t := table{
		name: TabContractSplitting,
		columns: []column{
			col("Bidder Name", kindText),
			col("Bidder Country", kindText),
			col("Risk Score", kindScore),
			col("Clusters", kindInt),
			col("Avg Contracts per Cluster", kindDecimal),
			col("Max Contracts in Cluster", kindInt),
			col("Avg Payment per Cluster", kindMoney),
			col("Max Cluster Payment", kindMoney),
			col("Dollars at Risk", kindMoney),
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Name, r.Country, r.RiskScore, r.ClustersCount, r.AvgContractsPerCluster,
			r.MaxContractsInCluster, r.AvgPaymentPerCluster, r.MaxClusterPayment, r.DollarsAtRisk,
		})
	}
	return t
}

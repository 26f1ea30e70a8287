package types

import (
	"time"
)

// Component names the four risk signals
type Component string

const (
	ComponentNonCompetitive        Component = "non_competitive"
	ComponentSpendingConcentration Component = "spending_concentration"
	ComponentShortBidWindow        Component = "short_bid_window"
	ComponentContractSplitting     Component = "contract_splitting"
)

// Components lists every signal in report order
var Components = []Component{
	ComponentNonCompetitive,
	ComponentSpendingConcentration,
	ComponentShortBidWindow,
	ComponentContractSplitting,
}

// ComponentScore is the part of a detector summary the aggregator consumes
type ComponentScore struct {
	Bidder        BidderKey
	Score         float64
	DollarsAtRisk float64
}

// NonCompetitiveRow summarizes one bidder's reliance on non-competitive awards
type NonCompetitiveRow struct {
	BidderKey
	NonCompetitiveTendersWon    int     `json:"non_competitive_tenders_won"`
	TotalTendersWon             int     `json:"total_tenders_won"`
	PctTendersNonCompetitive    float64 `json:"pct_tenders_non_competitive"`
	NonCompetitiveDollarsAtRisk float64 `json:"non_competitive_dollars_at_risk"`
	TotalPayments               float64 `json:"total_payments"`
	PctPaymentsNonCompetitive   float64 `json:"pct_payments_non_comp_tenders"`
	AvgPriceNonCompetitive      float64 `json:"avg_price_non_competitive_tenders"`
	MostExpensiveNonCompetitive float64 `json:"most_expensive_non_competitive_tender"`
	TopBuyer                    string  `json:"top_buyer_non_comp_tenders"`
	TotalPaidByTopBuyer         float64 `json:"total_paid_by_top_buyer_non_comp_tenders"`
	RiskScore                   float64 `json:"non_competitive_tenders_risk_score"`
}

// NonCompetitiveResult is the non-competitive detector output
type NonCompetitiveResult struct {
	Summary []NonCompetitiveRow `json:"summary"`
	Tenders RecordTable         `json:"tenders"`
}

// Components returns the summary as aggregator input
func (r *NonCompetitiveResult) Components() []ComponentScore {
	if r == nil {
		return nil
	}
	out := make([]ComponentScore, 0, len(r.Summary))
	for _, row := range r.Summary {
		out = append(out, ComponentScore{Bidder: row.BidderKey, Score: row.RiskScore, DollarsAtRisk: row.NonCompetitiveDollarsAtRisk})
	}
	return out
}

// ConcentrationDetail is one flagged buyer→bidder-year relationship
type ConcentrationDetail struct {
	Buyer                     BuyerKey  `json:"buyer"`
	BuyerPaymentsAllTime      float64   `json:"total_payments_by_buyer_all_time"`
	Year                      int       `json:"tender_year"`
	Bidder                    BidderKey `json:"bidder"`
	BuyerTendersInYear        int       `json:"total_tenders_awarded_by_buyer_in_year"`
	BidderTendersInYear       int       `json:"total_tenders_awarded_to_bidder_in_year"`
	PctTendersToBidderInYear  float64   `json:"pct_tenders_to_bidder_in_year"`
	BuyerPaymentsInYear       float64   `json:"total_payments_by_buyer_in_year"`
	PaidToBidderInYear        float64   `json:"total_paid_to_bidder_in_year"`
	PctPaymentsToBidderInYear float64   `json:"pct_payments_to_bidder_in_year"`
}

// ConcentrationRow is the bidder-level spending concentration summary
type ConcentrationRow struct {
	BidderKey
	Count               int     `json:"spending_concentration_count"`
	DollarsAtRisk       float64 `json:"spending_concentration_dollars_at_risk"`
	TotalPctTenders     float64 `json:"total_pct_tenders"`
	TotalPctPayments    float64 `json:"total_pct_payments"`
	RiskScore           float64 `json:"spending_concentration_risk_score"`
	TopBuyer            string  `json:"top_buyer"`
	TotalPaidByTopBuyer float64 `json:"total_paid_by_top_buyer"`
}

// ConcentrationResult is the spending concentration detector output
type ConcentrationResult struct {
	Detail  []ConcentrationDetail `json:"detail"`
	Summary []ConcentrationRow    `json:"summary"`
}

// Components returns the summary as aggregator input
func (r *ConcentrationResult) Components() []ComponentScore {
	if r == nil {
		return nil
	}
	out := make([]ComponentScore, 0, len(r.Summary))
	for _, row := range r.Summary {
		out = append(out, ComponentScore{Bidder: row.BidderKey, Score: row.RiskScore, DollarsAtRisk: row.DollarsAtRisk})
	}
	return out
}

// BidWindow is one in-scope competitive tender with its bidding window
type BidWindow struct {
	TenderID              string     `json:"tender_id"`
	Bidder                BidderKey  `json:"bidder"`
	BuyerName             string     `json:"buyer_name"`
	Title                 string     `json:"tender_title"`
	LotTitle              string     `json:"lot_title,omitempty"`
	LotStatus             string     `json:"lot_status,omitempty"`
	SupplyType            string     `json:"tender_supplytype,omitempty"`
	PriceUSD              float64    `json:"cleaned_bid_price_usd"`
	PublicationDate       time.Time  `json:"tender_publications_firstcallfortenderdate"`
	BidDeadline           *time.Time `json:"tender_biddeadline,omitempty"`
	AwardDecisionDate     *time.Time `json:"tender_awarddecisiondate,omitempty"`
	ContractSignatureDate *time.Time `json:"tender_contractsignaturedate,omitempty"`
	EffectiveDeadline     time.Time  `json:"tender_biddeadline_filled"`
	WindowDays            int        `json:"bidding_window_days"`
}

// ShortWindowRow is the bidder-level short bidding window summary
type ShortWindowRow struct {
	BidderKey
	Count            int     `json:"short_bid_window_count"`
	AvgWindowDays    float64 `json:"avg_short_bid_window_days"`
	MinWindowDays    int     `json:"min_short_bid_window"`
	AvgPayment       float64 `json:"short_bid_window_avg_payment"`
	DollarsAtRisk    float64 `json:"short_bid_window_dollars_at_risk"`
	TopBuyer         string  `json:"short_bid_window_top_buyer"`
	TopBuyerPayments float64 `json:"short_bid_window_top_buyer_payments"`
	RiskScore        float64 `json:"short_bid_window_risk_score"`
}

// ShortWindowResult is the short bidding window detector output.
// Population is the filtered in-scope set the threshold was computed over.
type ShortWindowResult struct {
	Flagged      []BidWindow      `json:"flagged"`
	Summary      []ShortWindowRow `json:"summary"`
	Population   []BidWindow      `json:"population"`
	Threshold    float64          `json:"threshold_days"`
	HasThreshold bool             `json:"has_threshold"`
}

// Components returns the summary as aggregator input
func (r *ShortWindowResult) Components() []ComponentScore {
	if r == nil {
		return nil
	}
	out := make([]ComponentScore, 0, len(r.Summary))
	for _, row := range r.Summary {
		out = append(out, ComponentScore{Bidder: row.BidderKey, Score: row.RiskScore, DollarsAtRisk: row.DollarsAtRisk})
	}
	return out
}

// ContractCluster is a group of similar, temporally close sub-threshold
// awards to one bidder. ClusterID is a 1-based display label only.
type ContractCluster struct {
	ClusterID         int         `json:"cluster_id"`
	Bidder            BidderKey   `json:"bidder"`
	EarliestAwardDate time.Time   `json:"earliest_award_date"`
	LatestAwardDate   time.Time   `json:"latest_award_date"`
	DateRangeDays     int         `json:"date_range_days"`
	NumberOfContracts int         `json:"number_of_contracts"`
	TotalValueUSD     float64     `json:"total_value_usd"`
	AvgContractValue  float64     `json:"avg_contract_value"`
	BuyerCount        int         `json:"buyer_count"`
	Buyers            []string    `json:"buyers"`
	TenderTitles      []string    `json:"tender_titles"`
	TenderIDs         []string    `json:"tender_ids"`
	AwardDates        []time.Time `json:"award_dates"`
	ValuesUSD         []float64   `json:"values_usd"`
}

// SplitRow is the bidder-level contract splitting summary
type SplitRow struct {
	BidderKey
	ClustersCount          int     `json:"contract_split_clusters_count"`
	AvgContractsPerCluster float64 `json:"avg_contracts_per_cluster"`
	MaxContractsInCluster  int     `json:"max_contract_cluster_count"`
	AvgPaymentPerCluster   float64 `json:"contract_splitting_avg_payment_per_cluster"`
	MaxClusterPayment      float64 `json:"contract_splitting_max_cluster_payment"`
	DollarsAtRisk          float64 `json:"contract_splitting_dollars_at_risk"`
	RiskScore              float64 `json:"contract_splitting_risk_score"`
}

// SplitResult is the contract splitting detector output
type SplitResult struct {
	Clusters []ContractCluster `json:"clusters"`
	Summary  []SplitRow        `json:"summary"`
}

// Components returns the summary as aggregator input
func (r *SplitResult) Components() []ComponentScore {
	if r == nil {
		return nil
	}
	out := make([]ComponentScore, 0, len(r.Summary))
	for _, row := range r.Summary {
		out = append(out, ComponentScore{Bidder: row.BidderKey, Score: row.RiskScore, DollarsAtRisk: row.DollarsAtRisk})
	}
	return out
}

// CompositeRiskRecord is one bidder's combined ranking row
type CompositeRiskRecord struct {
	Rank int `json:"rank"`
	BidderKey
	TotalRiskScore     float64 `json:"total_risk_score"`
	TotalDollarsAtRisk float64 `json:"total_dollars_at_risk"`
	NumFlags           int     `json:"num_flags"`

	TotalTendersWon          int     `json:"total_tenders_won"`
	TotalPayments            float64 `json:"total_payments"`
	TotalBuyers              int     `json:"total_buyers"`
	TopBuyer                 string  `json:"top_buyer"`
	TotalPaidByTopBuyer      float64 `json:"total_paid_by_top_buyer"`
	TotalTendersFromTopBuyer int     `json:"total_tenders_from_top_buyer"`

	NonCompetitiveRiskScore            float64 `json:"non_competitive_tenders_risk_score"`
	NonCompetitiveDollarsAtRisk        float64 `json:"non_competitive_dollars_at_risk"`
	SpendingConcentrationRiskScore     float64 `json:"spending_concentration_risk_score"`
	SpendingConcentrationDollarsAtRisk float64 `json:"spending_concentration_dollars_at_risk"`
	ShortBidWindowRiskScore            float64 `json:"short_bid_window_risk_score"`
	ShortBidWindowDollarsAtRisk        float64 `json:"short_bid_window_dollars_at_risk"`
	ContractSplittingRiskScore         float64 `json:"contract_splitting_risk_score"`
	ContractSplittingDollarsAtRisk     float64 `json:"contract_splitting_dollars_at_risk"`
}

// ComponentScore returns the score of one signal
func (r CompositeRiskRecord) ComponentScore(c Component) float64 {
	switch c {
	case ComponentNonCompetitive:
		return r.NonCompetitiveRiskScore
	case ComponentSpendingConcentration:
		return r.SpendingConcentrationRiskScore
	case ComponentShortBidWindow:
		return r.ShortBidWindowRiskScore
	case ComponentContractSplitting:
		return r.ContractSplittingRiskScore
	}
	return 0
}

// BuyerSummaryRow is one buyer's award totals and its top bidder
type BuyerSummaryRow struct {
	BuyerKey
	TotalTendersAwarded     int     `json:"total_tenders_awarded"`
	TotalPayouts            float64 `json:"total_payouts"`
	TotalBidders            int     `json:"total_bidders"`
	TopBidder               string  `json:"top_bidder"`
	TopBidderCountry        string  `json:"top_bidder_country"`
	TotalPaidToTopBidder    float64 `json:"total_paid_to_top_bidder"`
	TotalTendersToTopBidder int     `json:"total_tenders_to_top_bidder"`
}

// RiskReport bundles every table the exporters render for one country
type RiskReport struct {
	RunID       string    `json:"run_id"`
	Country     string    `json:"country"`
	GeneratedAt time.Time `json:"generated_at"`

	Composite             []CompositeRiskRecord `json:"bidder_risk_summary"`
	Buyers                []BuyerSummaryRow     `json:"buyer_summary"`
	NonCompetitive        []NonCompetitiveRow   `json:"non_competitive_summary"`
	SpendingConcentration []ConcentrationRow    `json:"spending_concentration_summary"`
	ShortBidWindow        []ShortWindowRow      `json:"short_bid_window_summary"`
	ContractSplitting     []SplitRow            `json:"contract_split_summary"`

	ShortWindowThreshold *float64 `json:"short_bid_window_threshold_days,omitempty"`
}

// Empty reports whether the report has no rows in any table
func (r *RiskReport) Empty() bool {
	return len(r.Composite) == 0 && len(r.Buyers) == 0 && len(r.NonCompetitive) == 0 &&
		len(r.SpendingConcentration) == 0 && len(r.ShortBidWindow) == 0 && len(r.ContractSplitting) == 0
}

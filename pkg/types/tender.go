package types

import (
	"fmt"
	"time"
)

// BidderKey identifies a bidder across every table
type BidderKey struct {
	Name    string `json:"bidder_name" yaml:"bidder_name"`
	Country string `json:"bidder_country" yaml:"bidder_country"`
}

// String returns "NAME (CC)"
func (k BidderKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Country)
}

// Less orders keys by name, then country
func (k BidderKey) Less(o BidderKey) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Country < o.Country
}

// BuyerKey identifies a procuring entity
type BuyerKey struct {
	Name    string `json:"buyer_name" yaml:"buyer_name"`
	Country string `json:"buyer_country" yaml:"buyer_country"`
}

// String returns "NAME (CC)"
func (k BuyerKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Country)
}

// Less orders keys by name, then country
func (k BuyerKey) Less(o BuyerKey) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Country < o.Country
}

// RawTender is one row of a country export as read from disk.
// Every field is optional; nil pointers and empty strings mean missing.
type RawTender struct {
	TenderID          string   `json:"tender_id"`
	TenderTitle       string   `json:"tender_title,omitempty"`
	LotTitle          string   `json:"lot_title,omitempty"`
	LotStatus         string   `json:"lot_status,omitempty"`
	ProcedureType     string   `json:"tender_proceduretype,omitempty"`
	SupplyType        string   `json:"tender_supplytype,omitempty"`
	RecordedBidsCount *float64 `json:"tender_recordedbidscount,omitempty"`
	CPVs              string   `json:"tender_cpvs,omitempty"`
	Year              *int     `json:"tender_year,omitempty"`

	BuyerName    string `json:"buyer_name,omitempty"`
	BuyerCity    string `json:"buyer_city,omitempty"`
	BuyerCountry string `json:"buyer_country,omitempty"`

	BidderName    string `json:"bidder_name,omitempty"`
	BidderCountry string `json:"bidder_country,omitempty"`

	Currency    string   `json:"currency,omitempty"`
	BidPrice    *float64 `json:"bid_price,omitempty"`
	BidPriceUSD *float64 `json:"bid_price_usd,omitempty"`

	PublicationDate        *time.Time `json:"tender_publications_firstcallfortenderdate,omitempty"`
	BidDeadline            *time.Time `json:"tender_biddeadline,omitempty"`
	AwardDecisionDate      *time.Time `json:"tender_awarddecisiondate,omitempty"`
	FirstContractAwardDate *time.Time `json:"tender_publications_firstdcontractawarddate,omitempty"`
	ContractSignatureDate  *time.Time `json:"tender_contractsignaturedate,omitempty"`
	CancellationDate       *time.Time `json:"tender_cancellationdate,omitempty"`

	Source string `json:"source,omitempty"`
}

// TenderRecord is one cleaned bid submission. Records in a RecordTable
// always carry a positive price and non-empty bidder and buyer names.
type TenderRecord struct {
	TenderID          string   `json:"tender_id"`
	Title             string   `json:"tender_title"`
	LotTitle          string   `json:"lot_title,omitempty"`
	LotStatus         string   `json:"lot_status,omitempty"`
	ProcedureType     string   `json:"tender_proceduretype,omitempty"`
	SupplyType        string   `json:"tender_supplytype,omitempty"`
	RecordedBidsCount *float64 `json:"tender_recordedbidscount,omitempty"`
	CPVs              string   `json:"tender_cpvs,omitempty"`
	Year              int      `json:"tender_year"`

	Buyer     BuyerKey  `json:"buyer"`
	BuyerCity string    `json:"buyer_city,omitempty"`
	Bidder    BidderKey `json:"bidder"`

	PriceUSD float64 `json:"cleaned_bid_price_usd"`

	PublicationDate        *time.Time `json:"tender_publications_firstcallfortenderdate,omitempty"`
	BidDeadline            *time.Time `json:"tender_biddeadline,omitempty"`
	AwardDecisionDate      *time.Time `json:"tender_awarddecisiondate,omitempty"`
	FirstContractAwardDate *time.Time `json:"tender_publications_firstdcontractawarddate,omitempty"`
	ContractSignatureDate  *time.Time `json:"tender_contractsignaturedate,omitempty"`
	CancellationDate       *time.Time `json:"tender_cancellationdate,omitempty"`

	TaxHaven       bool `json:"tax_haven"`
	NonCompetitive bool `json:"flag_non_competitive"`

	Source string `json:"source,omitempty"`
}

// RecordTable is the cleaned, in-memory table every detector reads.
// Detectors treat it as immutable.
type RecordTable []TenderRecord

// Competitive returns the records not flagged non-competitive
func (t RecordTable) Competitive() RecordTable {
	out := make(RecordTable, 0, len(t))
	for _, r := range t {
		if !r.NonCompetitive {
			out = append(out, r)
		}
	}
	return out
}

// NonCompetitive returns the records flagged non-competitive
func (t RecordTable) NonCompetitive() RecordTable {
	out := make(RecordTable, 0)
	for _, r := range t {
		if r.NonCompetitive {
			out = append(out, r)
		}
	}
	return out
}

// Bidders returns the distinct bidder keys in first-seen order
func (t RecordTable) Bidders() []BidderKey {
	seen := make(map[BidderKey]bool)
	var keys []BidderKey
	for _, r := range t {
		if !seen[r.Bidder] {
			seen[r.Bidder] = true
			keys = append(keys, r.Bidder)
		}
	}
	return keys
}

// FirstDate returns the first non-nil date, or nil
func FirstDate(dates ...*time.Time) *time.Time {
	for _, d := range dates {
		if d != nil {
			return d
		}
	}
	return nil
}

// Package cleaning turns raw tender exports into the record table the
// detectors consume
package cleaning

import (
	"strings"

	"github.com/su1ph3r/procrisk/internal/textnorm"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// Options controls record filtering and derived flags
type Options struct {
	MinYear        int
	MaxYear        int // 0 disables the upper bound
	TaxHavens      []string
	ProcedureTypes []string // lower-case non-competitive procedure types
}

// OptionsFromConfig builds cleaning options from the application config
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		MinYear:        cfg.Years.Min,
		MaxYear:        cfg.Years.Max,
		TaxHavens:      cfg.Cleaning.TaxHavens,
		ProcedureTypes: cfg.NonCompetitive.ProcedureTypes,
	}
}

// Report describes what a cleaning pass did
type Report struct {
	InputRows         int  `json:"input_rows"`
	OutputRows        int  `json:"output_rows"`
	FilteredRows      int  `json:"filtered_rows"`
	DuplicatesRemoved int  `json:"duplicates_removed"`
	MinYearAvailable  int  `json:"min_year_available"`
	MaxYearAvailable  int  `json:"max_year_available"`
	HasYears          bool `json:"has_years"`
}

type idPriceKey struct {
	id    string
	price float64
}

type titlePriceKey struct {
	title string
	price float64
}

// Clean normalizes, filters and de-duplicates raw tenders, and derives the
// tax haven and non-competitive flags. Input order is preserved.
func Clean(raw []types.RawTender, opts Options) (types.RecordTable, Report) {
	report := Report{InputRows: len(raw)}

	havens := toSet(opts.TaxHavens, strings.ToUpper)
	procedures := toSet(opts.ProcedureTypes, strings.ToLower)

	kept := make(types.RecordTable, 0, len(raw))
	for _, r := range raw {
		if r.Year != nil {
			if !report.HasYears || *r.Year < report.MinYearAvailable {
				report.MinYearAvailable = *r.Year
			}
			if !report.HasYears || *r.Year > report.MaxYearAvailable {
				report.MaxYearAvailable = *r.Year
			}
			report.HasYears = true
		}

		rec, ok := prepare(r, opts, havens, procedures)
		if !ok {
			report.FilteredRows++
			continue
		}
		kept = append(kept, rec)
	}

	deduped := dedupe(kept)
	report.DuplicatesRemoved = len(kept) - len(deduped)
	report.OutputRows = len(deduped)
	return deduped, report
}

func prepare(r types.RawTender, opts Options, havens, procedures map[string]bool) (types.TenderRecord, bool) {
	bidder := textnorm.NormalizeName(r.BidderName)
	buyer := textnorm.NormalizeName(r.BuyerName)
	if bidder == "" || buyer == "" {
		return types.TenderRecord{}, false
	}

	price := usdPrice(r)
	if price == nil || *price <= 0 {
		return types.TenderRecord{}, false
	}

	if r.Year == nil || *r.Year < opts.MinYear {
		return types.TenderRecord{}, false
	}
	if opts.MaxYear != 0 && *r.Year > opts.MaxYear {
		return types.TenderRecord{}, false
	}

	rec := types.TenderRecord{
		TenderID:          r.TenderID,
		Title:             textnorm.Upper(r.TenderTitle),
		LotTitle:          textnorm.Upper(r.LotTitle),
		LotStatus:         r.LotStatus,
		ProcedureType:     r.ProcedureType,
		SupplyType:        r.SupplyType,
		RecordedBidsCount: r.RecordedBidsCount,
		CPVs:              r.CPVs,
		Year:              *r.Year,

		Buyer:     types.BuyerKey{Name: buyer, Country: r.BuyerCountry},
		BuyerCity: r.BuyerCity,
		Bidder:    types.BidderKey{Name: bidder, Country: r.BidderCountry},

		PriceUSD: *price,

		PublicationDate:        r.PublicationDate,
		BidDeadline:            r.BidDeadline,
		AwardDecisionDate:      r.AwardDecisionDate,
		FirstContractAwardDate: r.FirstContractAwardDate,
		ContractSignatureDate:  r.ContractSignatureDate,
		CancellationDate:       r.CancellationDate,

		TaxHaven: havens[strings.ToUpper(r.BidderCountry)],
		Source:   r.Source,
	}
	rec.NonCompetitive = IsNonCompetitive(r.ProcedureType, r.RecordedBidsCount, procedures)
	return rec, true
}

// IsNonCompetitive reports whether a tender was awarded without open
// competition: a listed procedure type or exactly one recorded bid.
func IsNonCompetitive(procedureType string, recordedBids *float64, procedures map[string]bool) bool {
	if procedures[strings.ToLower(procedureType)] {
		return true
	}
	return recordedBids != nil && *recordedBids == 1
}

func usdPrice(r types.RawTender) *float64 {
	if r.Currency == "USD" {
		return r.BidPrice
	}
	return r.BidPriceUSD
}

// dedupe drops repeats of (tender id, price) and then of (title, price),
// keeping the first occurrence of each
func dedupe(records types.RecordTable) types.RecordTable {
	seenID := make(map[idPriceKey]bool, len(records))
	byID := make(types.RecordTable, 0, len(records))
	for _, r := range records {
		k := idPriceKey{r.TenderID, r.PriceUSD}
		if seenID[k] {
			continue
		}
		seenID[k] = true
		byID = append(byID, r)
	}

	seenTitle := make(map[titlePriceKey]bool, len(byID))
	out := make(types.RecordTable, 0, len(byID))
	for _, r := range byID {
		k := titlePriceKey{r.Title, r.PriceUSD}
		if seenTitle[k] {
			continue
		}
		seenTitle[k] = true
		out = append(out, r)
	}
	return out
}

func toSet(values []string, norm func(string) string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[norm(v)] = true
	}
	return set
}

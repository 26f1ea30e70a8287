// Package importer loads raw country tender exports
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/su1ph3r/procrisk/pkg/types"
)

var (
	// ErrNoInputFile is returned when no export exists for a country
	ErrNoInputFile = errors.New("no input file found")

	// ErrInvalidInput is returned when an export cannot be read as a tender table
	ErrInvalidInput = errors.New("invalid input file")
)

// dateLayouts are tried in order; a value matching none becomes missing
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
}

// FindInputFile returns the export for country in dir. Files must start with
// the country code and end in .csv; the greatest name wins when several match.
func FindInputFile(dir, country string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: directory %s does not exist", ErrNoInputFile, dir)
		}
		return "", fmt.Errorf("failed to read input directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(name, country) && strings.HasSuffix(strings.ToLower(name), ".csv") {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w for %s in %s", ErrNoInputFile, country, dir)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return filepath.Join(dir, matches[0]), nil
}

// LoadFile reads a tender export from path
func LoadFile(path string) ([]types.RawTender, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a tender export. Columns are matched by header name; unknown
// columns are ignored and unparseable values become missing.
func Load(r io.Reader) ([]types.RawTender, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols["tender_id"]; !ok {
		return nil, fmt.Errorf("%w: missing tender_id column", ErrInvalidInput)
	}

	var tenders []types.RawTender
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidInput, line, err)
		}

		fields := row{cols: cols, rec: rec}
		tenders = append(tenders, types.RawTender{
			TenderID:          fields.str("tender_id"),
			TenderTitle:       fields.str("tender_title"),
			LotTitle:          fields.str("lot_title"),
			LotStatus:         fields.str("lot_status"),
			ProcedureType:     fields.str("tender_proceduretype"),
			SupplyType:        fields.str("tender_supplytype"),
			RecordedBidsCount: fields.float("tender_recordedbidscount"),
			CPVs:              fields.str("tender_cpvs"),
			Year:              fields.year("tender_year"),

			BuyerName:    fields.str("buyer_name"),
			BuyerCity:    fields.str("buyer_city"),
			BuyerCountry: fields.str("buyer_country"),

			BidderName:    fields.str("bidder_name"),
			BidderCountry: fields.str("bidder_country"),

			Currency:    fields.str("currency"),
			BidPrice:    fields.float("bid_price"),
			BidPriceUSD: fields.float("bid_priceUsd"),

			PublicationDate:        fields.date("tender_publications_firstcallfortenderdate"),
			BidDeadline:            fields.date("tender_biddeadline"),
			AwardDecisionDate:      fields.date("tender_awarddecisiondate"),
			FirstContractAwardDate: fields.date("tender_publications_firstdcontractawarddate"),
			ContractSignatureDate:  fields.date("tender_contractsignaturedate"),
			CancellationDate:       fields.date("tender_cancellationdate"),

			Source: fields.str("source"),
		})
	}

	return tenders, nil
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) float(name string) *float64 {
	return ParseFloat(r.str(name))
}

func (r row) year(name string) *int {
	f := ParseFloat(r.str(name))
	if f == nil {
		return nil
	}
	y := int(*f)
	return &y
}

func (r row) date(name string) *time.Time {
	return ParseDate(r.str(name))
}

// ParseFloat parses a number, returning nil for empty or malformed values
func ParseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseDate parses a date with the known export layouts, returning nil when
// none match. Times are normalized to UTC.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/su1ph3r/procrisk/pkg/types"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "procrisk.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)

	table := types.RecordTable{
		{TenderID: "T1", Bidder: types.BidderKey{Name: "ACME", Country: "MX"}, PriceUSD: 1500, Year: 2021},
		{TenderID: "T2", Bidder: types.BidderKey{Name: "BETA", Country: "MX"}, PriceUSD: 20, Year: 2022},
	}
	if err := s.Put("MX", ArtifactCleaned, table); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got types.RecordTable
	if err := s.Get("MX", ArtifactCleaned, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 2 || got[0].Bidder.Name != "ACME" || got[1].PriceUSD != 20 {
		t.Errorf("unexpected table: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)

	var got types.RecordTable
	err := s.Get("MX", ArtifactCleaned, &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown country, got %v", err)
	}

	if err := s.Put("MX", ArtifactRaw, []types.RawTender{{TenderID: "T1"}}); err != nil {
		t.Fatal(err)
	}
	err = s.Get("MX", ArtifactCleaned, &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing artifact, got %v", err)
	}
}

func TestCountriesAreIsolated(t *testing.T) {
	s := openTemp(t)

	if err := s.Put("MX", ArtifactAggregate, []int{1}); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Has("CO", ArtifactAggregate)
	if err != nil || ok {
		t.Errorf("Has(CO) = %v, %v; want false", ok, err)
	}
	ok, err = s.Has("MX", ArtifactAggregate)
	if err != nil || !ok {
		t.Errorf("Has(MX) = %v, %v; want true", ok, err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := openTemp(t)

	for _, name := range []Artifact{ArtifactRaw, ArtifactCleaned, ArtifactAggregate} {
		if err := s.Put("MX", name, map[string]int{"n": 1}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.List("MX")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Name != ArtifactAggregate || entries[2].Name != ArtifactRaw {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].SavedAt.IsZero() || entries[0].Size == 0 {
		t.Errorf("entry missing metadata: %+v", entries[0])
	}

	if err := s.Delete("MX", ArtifactCleaned); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("MX", ArtifactCleaned); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
	if err := s.Delete("CO", ArtifactCleaned); err != nil {
		t.Errorf("deleting from unknown country should not fail: %v", err)
	}
	entries, _ = s.List("MX")
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after delete, got %d", len(entries))
	}

	countries, err := s.Countries()
	if err != nil || len(countries) != 1 || countries[0] != "MX" {
		t.Errorf("Countries = %v, %v", countries, err)
	}
}

func TestPutAll(t *testing.T) {
	s := openTemp(t)

	err := s.PutAll("MX", map[Artifact]any{
		ArtifactContractSplitAll:     []int{1, 2},
		ArtifactContractSplitSummary: []int{3},
	})
	if err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	var all, summary []int
	if err := s.Get("MX", ArtifactContractSplitAll, &all); err != nil || len(all) != 2 {
		t.Errorf("all = %v, %v", all, err)
	}
	if err := s.Get("MX", ArtifactContractSplitSummary, &summary); err != nil || len(summary) != 1 {
		t.Errorf("summary = %v, %v", summary, err)
	}

	// an unmarshalable value aborts the whole write
	err = s.PutAll("MX", map[Artifact]any{
		ArtifactNonCompetitiveSummary: []int{1},
		ArtifactNonCompetitiveTenders: make(chan int),
	})
	if err == nil {
		t.Fatal("expected marshal error")
	}
	if ok, _ := s.Has("MX", ArtifactNonCompetitiveSummary); ok {
		t.Error("partial write after failed PutAll")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procrisk.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("MX", ArtifactBuyerSummary, []string{"CITYX"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var got []string
	if err := s.Get("MX", ArtifactBuyerSummary, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "CITYX" {
		t.Errorf("got %v", got)
	}
}

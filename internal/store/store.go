// Package store persists pipeline artifacts per country in a bbolt database
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when an artifact has not been written for a country
var ErrNotFound = errors.New("artifact not found")

// Artifact names a persisted table
type Artifact string

const (
	ArtifactRaw                          Artifact = "raw"
	ArtifactCleaned                      Artifact = "cleaned"
	ArtifactNonCompetitiveTenders        Artifact = "non_competitive_tenders"
	ArtifactNonCompetitiveSummary        Artifact = "non_competitive_summary"
	ArtifactSpendingConcentrationAll     Artifact = "spending_concentration_all"
	ArtifactSpendingConcentrationSummary Artifact = "spending_concentration_summary"
	ArtifactShortBidWindowAll            Artifact = "short_bid_window_all"
	ArtifactShortBidWindowSummary        Artifact = "short_bid_window_summary"
	ArtifactContractSplitAll             Artifact = "contract_split_all"
	ArtifactContractSplitSummary         Artifact = "contract_split_summary"
	ArtifactAggregate                    Artifact = "aggregate"
	ArtifactBuyerSummary                 Artifact = "buyer_summary"
)

// Entry describes one stored artifact
type Entry struct {
	Name    Artifact  `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Size    int       `json:"size"`
}

// envelope is the on-disk value
type envelope struct {
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// Store wraps a bbolt database with one bucket per country
type Store struct {
	db   *bbolt.DB
	path string
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketName(country string) []byte {
	return []byte(country)
}

// Put marshals v and stores it under name, replacing any previous value
func (s *Store) Put(country string, name Artifact, v any) error {
	return s.PutAll(country, map[Artifact]any{name: v})
}

// PutAll writes several artifacts in one transaction: either all of them
// are stored or none is
func (s *Store) PutAll(country string, values map[Artifact]any) error {
	savedAt := time.Now().UTC()
	encoded := make(map[Artifact][]byte, len(values))
	for name, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		value, err := json.Marshal(envelope{SavedAt: savedAt, Data: data})
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		encoded[name] = value
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName(country))
		if err != nil {
			return err
		}
		for name, value := range encoded {
			if err := bucket.Put([]byte(name), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s artifacts: %w", country, err)
	}
	return nil
}

// Get loads the artifact into v. It returns an error wrapping ErrNotFound
// when the artifact is absent.
func (s *Store) Get(country string, name Artifact, v any) error {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName(country))
		if bucket == nil {
			return nil
		}
		if raw := bucket.Get([]byte(name)); raw != nil {
			// bbolt values are only valid inside the transaction
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", country, name, err)
	}
	if value == nil {
		return fmt.Errorf("%s/%s: %w", country, name, ErrNotFound)
	}

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", country, name, err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", country, name, err)
	}
	return nil
}

// Has reports whether the artifact exists
func (s *Store) Has(country string, name Artifact) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket(bucketName(country)); bucket != nil {
			found = bucket.Get([]byte(name)) != nil
		}
		return nil
	})
	return found, err
}

// Delete removes the artifact; deleting a missing artifact is not an error
func (s *Store) Delete(country string, name Artifact) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName(country))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(name))
	})
}

// List returns the artifacts stored for country, sorted by name
func (s *Store) List(country string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName(country))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("failed to decode %s/%s: %w", country, k, err)
			}
			entries = append(entries, Entry{Name: Artifact(k), SavedAt: env.SavedAt, Size: len(env.Data)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Countries returns every country with at least one bucket
func (s *Store) Countries() ([]string, error) {
	var countries []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			countries = append(countries, string(name))
			return nil
		})
	})
	return countries, err
}

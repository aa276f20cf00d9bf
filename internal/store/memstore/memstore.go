// Package memstore is an in-process core.Store. It backs the test suites and
// STORE_BACKEND=memory; nothing survives a restart.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/patients/internal/core"
)

// Store keeps patients in insertion order with a unique index on patient_id.
type Store struct {
	mu      sync.RWMutex
	records []core.Patient
	index   map[string]int // patient_id -> position in records
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

func (s *Store) FindOne(_ context.Context, f core.Filter) (*core.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.PatientID != "" && f.NameContains == "" {
		i, ok := s.index[f.PatientID]
		if !ok {
			return nil, core.ErrNotFound
		}
		p := s.records[i]
		return &p, nil
	}
	for _, p := range s.records {
		if matches(p, f) {
			return &p, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindMany(_ context.Context, f core.Filter, limit int) ([]core.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Patient, 0)
	for _, p := range s.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matches(p, f) {
			out = append(out, p)
		}
	}
	return out, nil
}

// HighestPatientID uses core.ComparePatientIDs.
func (s *Store) HighestPatientID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest string
	for _, p := range s.records {
		if core.ComparePatientIDs(p.PatientID, highest) > 0 {
			highest = p.PatientID
		}
	}
	return highest, nil
}

func (s *Store) InsertOne(_ context.Context, p core.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(p)
}

func (s *Store) InsertMany(_ context.Context, ps []core.Patient) (int, []core.InsertError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []core.InsertError
	inserted := 0
	for i, p := range ps {
		if err := s.insert(p); err != nil {
			failures = append(failures, core.InsertError{Index: i, PatientID: p.PatientID, Err: err})
			continue
		}
		inserted++
	}
	return inserted, failures, nil
}

func (s *Store) insert(p core.Patient) error {
	if _, taken := s.index[p.PatientID]; taken {
		return core.ErrDuplicateIdentifier
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.index[p.PatientID] = len(s.records)
	s.records = append(s.records, p)
	return nil
}

func (s *Store) UpdateOne(_ context.Context, patientID string, patch core.Patch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[patientID]
	if !ok {
		return 0, core.ErrNotFound
	}
	before := s.records[i]
	s.records[i].Apply(patch)
	if s.records[i] == before {
		return 0, nil
	}
	return 1, nil
}

func (s *Store) DeleteOne(_ context.Context, patientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[patientID]
	if !ok {
		return 0, nil
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, patientID)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].PatientID] = j
	}
	return 1, nil
}

func (s *Store) Count(_ context.Context, f core.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.records {
		if matches(p, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DropAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func matches(p core.Patient, f core.Filter) bool {
	if f.PatientID != "" && p.PatientID != f.PatientID {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}


// Package memstore provides the canonical in-memory RecordStore. It is the
// store the daemon runs with; durability across restarts comes from the
// record cache, not from the store itself.
package memstore

import (
	"context"
	"sync"

	"github.com/andrewwormald/floortrack"
)

func New() *Store {
	return &Store{
		index: make(map[string]*floortrack.ProductionRecord),
	}
}

var _ floortrack.RecordStore = (*Store)(nil)

type Store struct {
	mu          sync.Mutex
	initialised bool

	// order preserves the reconciled generation's ordering; index provides
	// id lookups. Both reference the same record pointers.
	order []string
	index map[string]*floortrack.ProductionRecord
}

func (s *Store) Init(ctx context.Context, records []*floortrack.ProductionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A seed must never clobber live data.
	if s.initialised && len(s.order) > 0 {
		return nil
	}

	s.install(records)
	return nil
}

func (s *Store) All(ctx context.Context) ([]*floortrack.ProductionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return nil, floortrack.ErrStoreNotInitialised
	}

	return s.list(func(*floortrack.ProductionRecord) bool { return true }), nil
}

func (s *Store) Active(ctx context.Context) ([]*floortrack.ProductionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return nil, floortrack.ErrStoreNotInitialised
	}

	return s.list(func(r *floortrack.ProductionRecord) bool {
		return r.Status == floortrack.StatusActive || r.Status == floortrack.StatusPaused
	}), nil
}

func (s *Store) Lookup(ctx context.Context, id string) (*floortrack.ProductionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return nil, floortrack.ErrStoreNotInitialised
	}

	record, ok := s.index[id]
	if !ok {
		return nil, floortrack.ErrRecordNotFound
	}

	return record, nil
}

func (s *Store) Set(ctx context.Context, records []*floortrack.ProductionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.install(records)
	return nil
}

func (s *Store) Update(ctx context.Context, record *floortrack.ProductionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return floortrack.ErrStoreNotInitialised
	}

	if _, ok := s.index[record.ID]; !ok {
		return floortrack.ErrRecordNotFound
	}

	s.index[record.ID] = record
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.index = make(map[string]*floortrack.ProductionRecord)
	s.initialised = false
	return nil
}

func (s *Store) install(records []*floortrack.ProductionRecord) {
	s.order = make([]string, 0, len(records))
	s.index = make(map[string]*floortrack.ProductionRecord, len(records))
	for _, r := range records {
		s.order = append(s.order, r.ID)
		s.index[r.ID] = r
	}
	s.initialised = true
}

func (s *Store) list(match func(*floortrack.ProductionRecord) bool) []*floortrack.ProductionRecord {
	out := make([]*floortrack.ProductionRecord, 0, len(s.order))
	for _, id := range s.order {
		record, ok := s.index[id]
		if !ok || !match(record) {
			continue
		}
		out = append(out, record)
	}
	return out
}

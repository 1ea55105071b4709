package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/phrazzld/chunkgen/internal/store"
)

// MockProgressStore implements the ProgressStore interface for testing.
// Each method delegates to an overridable function field.
type MockProgressStore struct {
	mutex   sync.RWMutex
	records map[string]Progress
	saves   []Progress

	SaveFn    func(ctx context.Context, p Progress) error
	LoadFn    func(ctx context.Context, region string) (Progress, error)
	DeleteFn  func(ctx context.Context, region string) error
	LoadAllFn func(ctx context.Context) ([]Progress, error)
}

// NewMockProgressStore creates a new MockProgressStore with in-memory
// default implementations.
func NewMockProgressStore() *MockProgressStore {
	s := &MockProgressStore{
		records: make(map[string]Progress),
	}

	s.SaveFn = func(ctx context.Context, p Progress) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.records[p.Region] = p
		s.saves = append(s.saves, p)
		return nil
	}

	s.LoadFn = func(ctx context.Context, region string) (Progress, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		p, ok := s.records[region]
		if !ok {
			return Progress{}, fmt.Errorf("%w: %s", store.ErrProgressNotFound, region)
		}
		return p, nil
	}

	s.DeleteFn = func(ctx context.Context, region string) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		delete(s.records, region)
		return nil
	}

	s.LoadAllFn = func(ctx context.Context) ([]Progress, error) {
		return s.Records(), nil
	}

	return s
}

// Save persists a record to the mock store
func (s *MockProgressStore) Save(ctx context.Context, p Progress) error {
	return s.SaveFn(ctx, p)
}

// Load retrieves a record from the mock store
func (s *MockProgressStore) Load(ctx context.Context, region string) (Progress, error) {
	return s.LoadFn(ctx, region)
}

// Delete removes a record from the mock store
func (s *MockProgressStore) Delete(ctx context.Context, region string) error {
	return s.DeleteFn(ctx, region)
}

// LoadAll retrieves every record from the mock store
func (s *MockProgressStore) LoadAll(ctx context.Context) ([]Progress, error) {
	return s.LoadAllFn(ctx)
}

// Put stores a record directly, bypassing SaveFn.
func (s *MockProgressStore) Put(p Progress) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[p.Region] = p
}

// Get returns the stored record for region, bypassing LoadFn.
func (s *MockProgressStore) Get(region string) (Progress, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.records[region]
	return p, ok
}

// Records returns every stored record ordered by region.
func (s *MockProgressStore) Records() []Progress {
	s.mutex.RLock()
	records := make([]Progress, 0, len(s.records))
	for _, p := range s.records {
		records = append(records, p)
	}
	s.mutex.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Region < records[j].Region
	})
	return records
}

// Saves returns every record passed to the default SaveFn, in order.
func (s *MockProgressStore) Saves() []Progress {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	saves := make([]Progress, len(s.saves))
	copy(saves, s.saves)
	return saves
}

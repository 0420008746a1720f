package store

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	registry *identity.Snapshot
	doors    map[string]doorbank.Record
	saves    int

	// FailWith, when set, is returned by every Save without writing.
	FailWith error
	// LoadDoorsErr, when set, is returned by LoadDoors along with the records.
	LoadDoorsErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doors: make(map[string]doorbank.Record)}
}

func (m *MemoryStore) LoadRegistry(ctx context.Context) (identity.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registry == nil {
		return identity.Snapshot{}, ErrNotFound
	}
	return cloneSnapshot(*m.registry), nil
}

func (m *MemoryStore) LoadDoors(ctx context.Context) (map[string]doorbank.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadDoorsErr != nil && !errors.Is(m.LoadDoorsErr, ErrCorruptRecord) {
		return nil, m.LoadDoorsErr
	}
	return maps.Clone(m.doors), m.LoadDoorsErr
}

func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	snap := cloneSnapshot(state.Registry)
	m.registry = &snap
	for name, rec := range state.Doors {
		m.doors[name] = rec
	}
	m.saves++
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Saves returns how many writes succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetFailure makes subsequent saves fail with err (nil restores success).
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWith = err
}

// SetLoadDoorsError makes LoadDoors fail with err. A corrupt-record error
// still returns the stored records, like a partially readable Redis hash.
func (m *MemoryStore) SetLoadDoorsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadDoorsErr = err
}

func cloneSnapshot(s identity.Snapshot) identity.Snapshot {
	out := identity.Snapshot{
		KnownIDs:       append([]int(nil), s.KnownIDs...),
		NextID:         s.NextID,
		KnownEncodings: make([][]float32, len(s.KnownEncodings)),
	}
	for i, e := range s.KnownEncodings {
		out.KnownEncodings[i] = append([]float32(nil), e...)
	}
	return out
}

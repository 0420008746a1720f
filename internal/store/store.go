// Package store persists the face registry and door states.
package store

import (
	"context"
	"errors"

	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
)

// ErrNotFound is returned when a requested value has never been written.
var ErrNotFound = errors.New("not found")

// ErrCorruptRecord marks a persisted record that could not be decoded. Loads
// that hit it still return every readable record.
var ErrCorruptRecord = errors.New("corrupt record")

// State is everything the locker persists, written as one unit.
type State struct {
	Registry identity.Snapshot
	Doors    map[string]doorbank.Record
}

// Reader loads persisted state.
type Reader interface {
	// LoadRegistry returns the registry snapshot, or ErrNotFound when none was saved.
	LoadRegistry(ctx context.Context) (identity.Snapshot, error)
	// LoadDoors returns every persisted door record keyed by door name.
	// Undecodable records are left out and reported with ErrCorruptRecord.
	LoadDoors(ctx context.Context) (map[string]doorbank.Record, error)
}

// Store reads and atomically writes locker state.
type Store interface {
	Reader

	// Save writes the registry snapshot and the given door records in one transaction.
	Save(ctx context.Context, state State) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

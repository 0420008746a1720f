package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
)

func TestMemoryStore_EmptyRegistry(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.LoadRegistry(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	doors, err := m.LoadDoors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doors)
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	id := 0

	state := State{
		Registry: identity.Snapshot{KnownIDs: []int{0}, NextID: 1, KnownEncodings: [][]float32{{0.5, 0.25}}},
		Doors:    map[string]doorbank.Record{"door_1": {Status: doorbank.StatusOpen, UserID: &id}},
	}
	require.NoError(t, m.Save(ctx, state))

	state.Registry.KnownEncodings[0][0] = 9

	snap, err := m.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, snap.KnownIDs)
	assert.Equal(t, []float32{0.5, 0.25}, snap.KnownEncodings[0])

	doors, err := m.LoadDoors(ctx)
	require.NoError(t, err)
	assert.Equal(t, doorbank.StatusOpen, doors["door_1"].Status)
	assert.Equal(t, 1, m.Saves())
}

func TestMemoryStore_Failure(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("boom")
	m.SetFailure(boom)

	err := m.Save(ctx, State{})
	assert.ErrorIs(t, err, boom)
	_, err = m.LoadRegistry(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Saves())
}

func TestMemoryStore_LoadDoorsError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Save(ctx, State{Doors: map[string]doorbank.Record{"door_1": {Status: doorbank.StatusUsed}}}))

	m.SetLoadDoorsError(errors.New("connection refused"))
	doors, err := m.LoadDoors(ctx)
	require.Error(t, err)
	assert.Nil(t, doors)

	m.SetLoadDoorsError(ErrCorruptRecord)
	doors, err = m.LoadDoors(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.Contains(t, doors, "door_1")
}

package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// unit returns a one-hot vector, so distinct dims are orthogonal (distance 1).
func unit(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

func TestRegistry_MatchEmpty(t *testing.T) {
	r := NewRegistry(0.6)
	_, _, ok := r.Match([]float32{1, 2, 3})
	assert.False(t, ok)
}

func TestRegistry_MatchPicksClosestWithinThreshold(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll([]float32{1, 0, 0})
	r.Enroll([]float32{0.9, 0.1, 0})
	r.Enroll([]float32{0, 0, 1})

	got, dist, ok := r.Match([]float32{0.95, 0.1, 0})
	require.True(t, ok)
	assert.Equal(t, 1, got.ID)
	assert.Less(t, dist, 0.01)
}

func TestRegistry_MatchRejectsBeyondThreshold(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll(unit(3, 0))
	r.Enroll(unit(3, 1))

	_, dist, ok := r.Match(unit(3, 2))
	assert.False(t, ok)
	assert.InDelta(t, 1.0, dist, 1e-9)
}

func TestRegistry_MatchAtThresholdIsAccepted(t *testing.T) {
	r := NewRegistry(1.0)
	r.Enroll(unit(2, 0))

	got, _, ok := r.Match(unit(2, 1))
	require.True(t, ok)
	assert.Equal(t, 0, got.ID)
}

func TestRegistry_MatchTieKeepsEarliest(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll([]float32{1, 2})
	r.Enroll([]float32{1, 2})

	got, _, ok := r.Match([]float32{1, 2})
	require.True(t, ok)
	assert.Equal(t, 0, got.ID)
}

func TestRegistry_ZeroNormCandidateNeverMatches(t *testing.T) {
	r := NewRegistry(0.99)
	r.Enroll([]float32{0, 0})

	_, dist, ok := r.Match([]float32{1, 0})
	assert.False(t, ok)
	assert.InDelta(t, 1.0, dist, 1e-9)
}

func TestRegistry_IDReuse(t *testing.T) {
	r := NewRegistry(0.6)
	assert.Equal(t, 0, r.Enroll(unit(4, 0)).ID)
	assert.Equal(t, 1, r.Enroll(unit(4, 1)).ID)
	assert.Equal(t, 2, r.Enroll(unit(4, 2)).ID)

	require.True(t, r.Remove(1))
	assert.Equal(t, 1, r.NextID())
	assert.Equal(t, 1, r.Enroll(unit(4, 3)).ID)
	assert.Equal(t, 3, r.NextID())
	assert.Equal(t, []int{0, 2, 1}, r.IDs())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll(unit(2, 0))
	assert.False(t, r.Remove(7))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_EnrollCopiesEmbedding(t *testing.T) {
	r := NewRegistry(0.6)
	v := []float32{1, 0}
	r.Enroll(v)
	v[0] = 0

	_, _, ok := r.Match([]float32{1, 0})
	assert.True(t, ok)
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll(unit(2, 0))

	c := r.Clone()
	c.Enroll(unit(2, 1))
	c.Remove(0)

	assert.Equal(t, []int{0}, r.IDs())
	assert.Equal(t, 1, r.NextID())
	assert.Equal(t, []int{1}, c.IDs())
	assert.Equal(t, 0, c.NextID())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	r := NewRegistry(0.6)
	r.Enroll([]float32{0.1, -0.25, 3.5e-7})
	r.Enroll([]float32{1, 2, 3})
	r.Enroll([]float32{-1, 0.333333, 9})
	r.Remove(1)

	data, err := json.Marshal(r.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := Restore(snap, 0.6)
	require.NoError(t, err)
	assert.Equal(t, r.IDs(), restored.IDs())
	assert.Equal(t, r.NextID(), restored.NextID())
	assert.Equal(t, r.Snapshot().KnownEncodings, restored.Snapshot().KnownEncodings)
}

func TestSnapshot_EmptyRegistryEncodesArrays(t *testing.T) {
	data, err := json.Marshal(NewRegistry(0.6).Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"knownIds":[],"nextId":0,"knownEncodings":[]}`, string(data))
}

func TestRestore_NormalizesNextID(t *testing.T) {
	r, err := Restore(Snapshot{
		KnownIDs:       []int{0, 5},
		NextID:         6,
		KnownEncodings: [][]float32{{1}, {2}},
	}, 0.6)
	require.NoError(t, err)
	assert.Equal(t, 1, r.NextID())
}

func TestRestore_Invalid(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"length mismatch", Snapshot{KnownIDs: []int{0}, KnownEncodings: nil}},
		{"negative id", Snapshot{KnownIDs: []int{-1}, KnownEncodings: [][]float32{{1}}}},
		{"duplicate id", Snapshot{KnownIDs: []int{2, 2}, KnownEncodings: [][]float32{{1}, {1}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Restore(tc.snap, 0.6)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

// TestRegistry_IDsAreSmallestUnused checks, for arbitrary enroll/remove
// sequences, that IDs stay unique and the next ID never leaves a gap.
func TestRegistry_IDsAreSmallestUnused(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry(0.6)
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")

		for range steps {
			if r.Len() > 0 && rapid.Bool().Draw(rt, "remove") {
				ids := r.IDs()
				victim := rapid.SampledFrom(ids).Draw(rt, "victim")
				if !r.Remove(victim) {
					rt.Fatalf("remove(%d) reported missing", victim)
				}
			} else {
				expected := r.NextID()
				got := r.Enroll([]float32{1}).ID
				if got != expected {
					rt.Fatalf("enroll got id %d, want %d", got, expected)
				}
			}

			seen := make(map[int]bool)
			for _, id := range r.IDs() {
				if seen[id] {
					rt.Fatalf("duplicate id %d", id)
				}
				seen[id] = true
			}
			for i := 0; i < r.NextID(); i++ {
				if !seen[i] {
					rt.Fatalf("next id %d leaves gap at %d", r.NextID(), i)
				}
			}
			if seen[r.NextID()] {
				rt.Fatalf("next id %d already in use", r.NextID())
			}
		}
	})
}

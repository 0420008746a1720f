// Package identity keeps the set of enrolled faces and matches new captures against it.
//
// A Registry is not safe for concurrent use. The locker engine owns the only
// instance and serializes every call behind its own mutex.
package identity

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidSnapshot is returned when a persisted snapshot cannot be restored.
var ErrInvalidSnapshot = errors.New("invalid registry snapshot")

// Identity is one enrolled face.
type Identity struct {
	ID        int
	Embedding []float32
}

// Registry maps identity IDs to embeddings, in enrollment order.
type Registry struct {
	threshold  float64
	ids        []int
	embeddings [][]float32
	inUse      map[int]struct{}
	nextID     int
}

// NewRegistry creates an empty registry that accepts matches at or below threshold.
func NewRegistry(threshold float64) *Registry {
	return &Registry{
		threshold: threshold,
		inUse:     make(map[int]struct{}),
	}
}

// Threshold returns the maximum cosine distance accepted as a match.
func (r *Registry) Threshold() float64 {
	return r.threshold
}

// Len returns the number of live identities.
func (r *Registry) Len() int {
	return len(r.ids)
}

// NextID returns the ID the next enrollment will receive.
func (r *Registry) NextID() int {
	return r.nextID
}

// IDs returns the live identity IDs in enrollment order.
func (r *Registry) IDs() []int {
	return slices.Clone(r.ids)
}

// Has reports whether id belongs to a live identity.
func (r *Registry) Has(id int) bool {
	_, ok := r.inUse[id]
	return ok
}

// Match returns the closest identity and its distance when that distance is
// within the threshold. Ties keep the earliest enrolled identity.
func (r *Registry) Match(embedding []float32) (Identity, float64, bool) {
	best := -1
	bestDistance := 0.0
	for i, known := range r.embeddings {
		d := CosineDistance(known, embedding)
		if best == -1 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best == -1 || bestDistance > r.threshold {
		return Identity{}, bestDistance, false
	}
	return Identity{ID: r.ids[best], Embedding: r.embeddings[best]}, bestDistance, true
}

// Enroll stores embedding under the smallest unused ID and returns the new identity.
func (r *Registry) Enroll(embedding []float32) Identity {
	id := r.nextID
	stored := slices.Clone(embedding)

	r.ids = append(r.ids, id)
	r.embeddings = append(r.embeddings, stored)
	r.inUse[id] = struct{}{}

	for {
		r.nextID++
		if _, taken := r.inUse[r.nextID]; !taken {
			break
		}
	}

	return Identity{ID: id, Embedding: stored}
}

// Remove deletes the identity with the given ID. It reports whether one existed.
func (r *Registry) Remove(id int) bool {
	idx := slices.Index(r.ids, id)
	if idx < 0 {
		return false
	}

	r.ids = slices.Delete(r.ids, idx, idx+1)
	r.embeddings = slices.Delete(r.embeddings, idx, idx+1)
	delete(r.inUse, id)
	r.nextID = smallestUnused(r.inUse)
	return true
}

// Clone returns a deep copy, used to stage a mutation before it is persisted.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		threshold:  r.threshold,
		ids:        slices.Clone(r.ids),
		embeddings: make([][]float32, len(r.embeddings)),
		inUse:      make(map[int]struct{}, len(r.inUse)),
		nextID:     r.nextID,
	}
	for i, e := range r.embeddings {
		c.embeddings[i] = slices.Clone(e)
	}
	for id := range r.inUse {
		c.inUse[id] = struct{}{}
	}
	return c
}

// smallestUnused returns the lowest non-negative integer not in used.
func smallestUnused(used map[int]struct{}) int {
	for i := 0; ; i++ {
		if _, ok := used[i]; !ok {
			return i
		}
	}
}

// Snapshot is the persisted form of a registry.
type Snapshot struct {
	KnownIDs       []int       `json:"knownIds"`
	NextID         int         `json:"nextId"`
	KnownEncodings [][]float32 `json:"knownEncodings"`
}

// Snapshot captures the registry contents for persistence.
func (r *Registry) Snapshot() Snapshot {
	c := r.Clone()
	ids := c.ids
	if ids == nil {
		ids = []int{}
	}
	return Snapshot{
		KnownIDs:       ids,
		NextID:         c.nextID,
		KnownEncodings: c.embeddings,
	}
}

// Restore rebuilds a registry from a snapshot. The next ID is recomputed as
// the smallest unused ID, so snapshots written with a monotonically growing
// counter are normalized on load.
func Restore(s Snapshot, threshold float64) (*Registry, error) {
	if len(s.KnownIDs) != len(s.KnownEncodings) {
		return nil, fmt.Errorf("%w: %d ids but %d encodings", ErrInvalidSnapshot, len(s.KnownIDs), len(s.KnownEncodings))
	}

	r := NewRegistry(threshold)
	for i, id := range s.KnownIDs {
		if id < 0 {
			return nil, fmt.Errorf("%w: negative id %d", ErrInvalidSnapshot, id)
		}
		if _, dup := r.inUse[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidSnapshot, id)
		}
		r.ids = append(r.ids, id)
		r.embeddings = append(r.embeddings, slices.Clone(s.KnownEncodings[i]))
		r.inUse[id] = struct{}{}
	}
	r.nextID = smallestUnused(r.inUse)
	return r, nil
}

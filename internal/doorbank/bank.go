package doorbank

import (
	"maps"
	"slices"
)

// Bank holds the fixed, ordered door set. It is not safe for concurrent use;
// the locker engine guards it with the same lock as the identity registry.
type Bank struct {
	names []string
	doors map[string]*Door
}

// New creates a bank with every door EMPTY and unrecorded, in the given order.
func New(names []string) *Bank {
	b := &Bank{
		names: slices.Clone(names),
		doors: make(map[string]*Door, len(names)),
	}
	for _, n := range names {
		b.doors[n] = &Door{Name: n, Status: StatusEmpty}
	}
	return b
}

// Names returns the door names in allocation order.
func (b *Bank) Names() []string {
	return slices.Clone(b.names)
}

// Has reports whether name is one of the physical doors.
func (b *Bank) Has(name string) bool {
	_, ok := b.doors[name]
	return ok
}

// Resolve maps a device-supplied door name onto a member of the bank,
// tolerating case, diacritics and dash/space separators.
func (b *Bank) Resolve(raw string) (string, bool) {
	if b.Has(raw) {
		return raw, true
	}
	want := NormalizeName(raw)
	for _, n := range b.names {
		if NormalizeName(n) == want {
			return n, true
		}
	}
	return "", false
}

// Get returns a copy of the named door.
func (b *Bank) Get(name string) (Door, bool) {
	d, ok := b.doors[name]
	if !ok {
		return Door{}, false
	}
	return copyDoor(d), true
}

// Doors returns copies of every door in allocation order.
func (b *Bank) Doors() []Door {
	out := make([]Door, 0, len(b.names))
	for _, n := range b.names {
		out = append(out, copyDoor(b.doors[n]))
	}
	return out
}

// Occupied counts doors that hold an identity.
func (b *Bank) Occupied() int {
	count := 0
	for _, d := range b.doors {
		if !d.Free() {
			count++
		}
	}
	return count
}

// FindFree returns the first door, in allocation order, with no assigned identity.
func (b *Bank) FindFree() (string, bool) {
	for _, n := range b.names {
		if b.doors[n].Free() {
			return n, true
		}
	}
	return "", false
}

// FindByIdentity returns the door holding id.
func (b *Bank) FindByIdentity(id int) (string, bool) {
	for _, n := range b.names {
		if a := b.doors[n].AssignedID; a != nil && *a == id {
			return n, true
		}
	}
	return "", false
}

// Assign gives a free door to id and marks it OPEN.
func (b *Bank) Assign(name string, id int) error {
	d, ok := b.doors[name]
	if !ok {
		return ErrUnknownDoor
	}
	if !d.Free() {
		return ErrDoorOccupied
	}
	if _, held := b.FindByIdentity(id); held {
		return ErrIdentityAssigned
	}
	d.AssignedID = intPtr(id)
	d.Status = StatusOpen
	d.Recorded = true
	return nil
}

// Reopen opens an already assigned door again, keeping its owner.
func (b *Bank) Reopen(name string) error {
	d, ok := b.doors[name]
	if !ok {
		return ErrUnknownDoor
	}
	if d.Free() {
		return ErrInvalidTransition
	}
	d.Status = StatusOpen
	d.Recorded = true
	return nil
}

// MarkClosed moves an OPEN door to USED once the device reports it shut.
func (b *Bank) MarkClosed(name string) error {
	d, ok := b.doors[name]
	if !ok {
		return ErrUnknownDoor
	}
	if d.Status != StatusOpen {
		return ErrInvalidTransition
	}
	d.Status = StatusUsed
	d.Recorded = true
	return nil
}

// Release clears the door's owner and resets it to EMPTY.
func (b *Bank) Release(name string) error {
	d, ok := b.doors[name]
	if !ok {
		return ErrUnknownDoor
	}
	d.AssignedID = nil
	d.Status = StatusEmpty
	d.Recorded = true
	return nil
}

// ApplyDeviceStatus records a status reported by the door controller. Only
// doors that already have a persisted record are updated. A closed report on
// an OPEN door is the OPEN -> USED transition; any other report overwrites the
// status field and leaves the assignment untouched.
func (b *Bank) ApplyDeviceStatus(name string, status Status) error {
	d, ok := b.doors[name]
	if !ok {
		return ErrUnknownDoor
	}
	if !d.Recorded {
		return ErrNotRecorded
	}
	if status == StatusUsed && d.Status == StatusOpen {
		return b.MarkClosed(name)
	}
	d.Status = status
	return nil
}

// Clone returns a deep copy, used to stage a mutation before it is persisted.
func (b *Bank) Clone() *Bank {
	c := &Bank{
		names: slices.Clone(b.names),
		doors: make(map[string]*Door, len(b.doors)),
	}
	for n, d := range b.doors {
		cp := copyDoor(d)
		c.doors[n] = &cp
	}
	return c
}

// Records returns the persisted form of every recorded door.
func (b *Bank) Records() map[string]Record {
	out := make(map[string]Record)
	for n, d := range b.doors {
		if !d.Recorded {
			continue
		}
		out[n] = toRecord(d)
	}
	return out
}

// Restore applies persisted records. Records for names outside the bank are
// returned as ignored. Statuses are canonicalized with ParseStatus; a blank
// status means EMPTY, and names whose status cannot be parsed are returned as
// invalid and fall back to USED when assigned and EMPTY otherwise.
func (b *Bank) Restore(records map[string]Record) (ignored, invalid []string) {
	for _, n := range slices.Sorted(maps.Keys(records)) {
		d, ok := b.doors[n]
		if !ok {
			ignored = append(ignored, n)
			continue
		}
		rec := records[n]
		d.AssignedID = nil
		if rec.UserID != nil {
			d.AssignedID = intPtr(*rec.UserID)
		}

		switch status, err := ParseStatus(string(rec.Status)); {
		case rec.Status == "":
			d.Status = StatusEmpty
		case err != nil:
			invalid = append(invalid, n)
			d.Status = StatusEmpty
			if d.AssignedID != nil {
				d.Status = StatusUsed
			}
		default:
			d.Status = status
		}
		d.Recorded = true
	}
	return ignored, invalid
}

// Changed returns the names of doors whose record differs between b and other.
func (b *Bank) Changed(other *Bank) []string {
	var names []string
	for _, n := range b.names {
		od, ok := other.doors[n]
		if !ok || !sameDoor(b.doors[n], od) {
			names = append(names, n)
		}
	}
	return names
}

func sameDoor(a, b *Door) bool {
	if a.Status != b.Status || a.Recorded != b.Recorded {
		return false
	}
	if a.AssignedID == nil || b.AssignedID == nil {
		return a.AssignedID == nil && b.AssignedID == nil
	}
	return *a.AssignedID == *b.AssignedID
}

func toRecord(d *Door) Record {
	rec := Record{Status: d.Status}
	if d.AssignedID != nil {
		rec.UserID = intPtr(*d.AssignedID)
	}
	return rec
}

func copyDoor(d *Door) Door {
	cp := *d
	if d.AssignedID != nil {
		cp.AssignedID = intPtr(*d.AssignedID)
	}
	return cp
}

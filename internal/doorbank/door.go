// Package doorbank models the fixed set of locker doors and their occupancy.
package doorbank

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a single door.
type Status string

// Door states. A door cycles EMPTY -> OPEN -> USED -> EMPTY forever.
const (
	StatusEmpty Status = "EMPTY"
	StatusOpen  Status = "OPEN"
	StatusUsed  Status = "USED"
)

// statusClosed is what some door controllers report instead of USED.
const statusClosed = "CLOSED"

var (
	ErrUnknownDoor       = errors.New("unknown door")
	ErrUnknownStatus     = errors.New("unknown door status")
	ErrDoorOccupied      = errors.New("door already assigned")
	ErrIdentityAssigned  = errors.New("identity already holds a door")
	ErrInvalidTransition = errors.New("invalid door transition")
	ErrNotRecorded       = errors.New("door has no persisted record")
)

// ParseStatus accepts the canonical states in any case, plus CLOSED as an alias for USED.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusEmpty):
		return StatusEmpty, nil
	case string(StatusOpen):
		return StatusOpen, nil
	case string(StatusUsed), statusClosed:
		return StatusUsed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Door is a snapshot of one slot.
type Door struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	AssignedID *int   `json:"userId"`
	Recorded   bool   `json:"recorded"` // whether the store holds a record for it
}

// Free reports whether the door can take a new parcel: it has no assigned identity.
func (d Door) Free() bool {
	return d.AssignedID == nil
}

// Record is the persisted shape of a door, stored per name under the door hash.
type Record struct {
	Status Status `json:"status"`
	UserID *int   `json:"userId"`
}

func intPtr(v int) *int {
	return &v
}

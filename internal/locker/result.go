package locker

import (
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/faces"
)

// Outcome labels how a command cycle ended.
type Outcome string

const (
	OutcomeAssigned      Outcome = "assigned"       // SEND gave a door to a face
	OutcomeReopened      Outcome = "reopened"       // SEND from someone already holding a door
	OutcomeReleased      Outcome = "released"       // GET opened and freed a door
	OutcomeDoorsFull     Outcome = "doors_full"     // SEND with no free door
	OutcomeNoFace        Outcome = "no_face"        // capture, detection or embedding failed
	OutcomeNoMatch       Outcome = "no_match"       // GET face matched nobody
	OutcomeNoDoor        Outcome = "no_door"        // GET identity holds no door
	OutcomePersistFailed Outcome = "persist_failed" // store rejected the commit
	OutcomeError         Outcome = "error"          // staging failed, nothing changed
)

// Result describes a finished SEND or GET cycle.
type Result struct {
	Outcome    Outcome
	Door       string
	IdentityID *int
	Enrolled   bool    // a new identity was created
	Distance   float64 // cosine distance of the best candidate, when one existed
}

// Status is a read-only view of the engine for the status page.
type Status struct {
	KnownFaces         int
	KnownIDs           []int
	NextID             int
	Doors              []doorbank.Door
	RecognitionEnabled bool
}

// Label is one face found in a preview frame. IdentityID is nil for
// faces that match nobody.
type Label struct {
	Box        faces.BoundingBox
	IdentityID *int
}

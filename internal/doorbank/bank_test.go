package doorbank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var fourDoors = []string{"door_1", "door_2", "door_3", "door_4"}

func TestBank_FindFreeInOrder(t *testing.T) {
	b := New(fourDoors)

	name, ok := b.FindFree()
	require.True(t, ok)
	assert.Equal(t, "door_1", name)

	require.NoError(t, b.Assign("door_1", 0))
	name, ok = b.FindFree()
	require.True(t, ok)
	assert.Equal(t, "door_2", name)
}

func TestBank_FindFreeWhenFull(t *testing.T) {
	b := New(fourDoors)
	for i, n := range fourDoors {
		require.NoError(t, b.Assign(n, i))
	}
	_, ok := b.FindFree()
	assert.False(t, ok)
	assert.Equal(t, 4, b.Occupied())
}

func TestBank_Lifecycle(t *testing.T) {
	b := New(fourDoors)

	require.NoError(t, b.Assign("door_1", 0))
	d, _ := b.Get("door_1")
	assert.Equal(t, StatusOpen, d.Status)
	require.NotNil(t, d.AssignedID)
	assert.Equal(t, 0, *d.AssignedID)

	require.NoError(t, b.MarkClosed("door_1"))
	d, _ = b.Get("door_1")
	assert.Equal(t, StatusUsed, d.Status)
	assert.Equal(t, 0, *d.AssignedID)

	name, ok := b.FindByIdentity(0)
	require.True(t, ok)
	assert.Equal(t, "door_1", name)

	require.NoError(t, b.Release("door_1"))
	d, _ = b.Get("door_1")
	assert.Equal(t, StatusEmpty, d.Status)
	assert.Nil(t, d.AssignedID)
	assert.True(t, d.Recorded)

	_, ok = b.FindByIdentity(0)
	assert.False(t, ok)
}

func TestBank_AssignGuards(t *testing.T) {
	b := New(fourDoors)
	require.NoError(t, b.Assign("door_1", 0))

	assert.ErrorIs(t, b.Assign("door_1", 1), ErrDoorOccupied)
	assert.ErrorIs(t, b.Assign("door_2", 0), ErrIdentityAssigned)
	assert.ErrorIs(t, b.Assign("door_9", 2), ErrUnknownDoor)
}

func TestBank_MarkClosedRequiresOpen(t *testing.T) {
	b := New(fourDoors)
	assert.ErrorIs(t, b.MarkClosed("door_1"), ErrInvalidTransition)
}

func TestBank_Reopen(t *testing.T) {
	b := New(fourDoors)
	assert.ErrorIs(t, b.Reopen("door_1"), ErrInvalidTransition)

	require.NoError(t, b.Assign("door_1", 3))
	require.NoError(t, b.MarkClosed("door_1"))
	require.NoError(t, b.Reopen("door_1"))
	d, _ := b.Get("door_1")
	assert.Equal(t, StatusOpen, d.Status)
	assert.Equal(t, 3, *d.AssignedID)
}

func TestBank_ApplyDeviceStatus(t *testing.T) {
	b := New(fourDoors)

	assert.ErrorIs(t, b.ApplyDeviceStatus("door_1", StatusUsed), ErrNotRecorded)
	assert.ErrorIs(t, b.ApplyDeviceStatus("nope", StatusUsed), ErrUnknownDoor)

	require.NoError(t, b.Assign("door_1", 0))
	require.NoError(t, b.ApplyDeviceStatus("door_1", StatusUsed))
	d, _ := b.Get("door_1")
	assert.Equal(t, StatusUsed, d.Status)
	assert.Equal(t, 0, *d.AssignedID)

	// Overwrites never touch the assignment.
	require.NoError(t, b.ApplyDeviceStatus("door_1", StatusEmpty))
	d, _ = b.Get("door_1")
	assert.Equal(t, StatusEmpty, d.Status)
	assert.False(t, d.Free())
}

func TestBank_GetReturnsCopy(t *testing.T) {
	b := New(fourDoors)
	require.NoError(t, b.Assign("door_1", 0))

	d, _ := b.Get("door_1")
	*d.AssignedID = 42

	name, ok := b.FindByIdentity(0)
	require.True(t, ok)
	assert.Equal(t, "door_1", name)
}

func TestBank_RecordsAndRestore(t *testing.T) {
	b := New(fourDoors)
	require.NoError(t, b.Assign("door_2", 5))
	require.NoError(t, b.Assign("door_1", 1))
	require.NoError(t, b.Release("door_1"))

	records := b.Records()
	require.Len(t, records, 2)
	assert.Equal(t, StatusEmpty, records["door_1"].Status)
	assert.Nil(t, records["door_1"].UserID)
	assert.Equal(t, 5, *records["door_2"].UserID)

	records["ghost"] = Record{Status: StatusUsed}
	restored := New(fourDoors)
	ignored, invalid := restored.Restore(records)
	assert.Equal(t, []string{"ghost"}, ignored)
	assert.Empty(t, invalid)
	assert.Empty(t, b.Changed(restored))
}

func TestBank_RestoreBlankStatus(t *testing.T) {
	b := New(fourDoors)
	b.Restore(map[string]Record{"door_3": {}})
	d, _ := b.Get("door_3")
	assert.Equal(t, StatusEmpty, d.Status)
	assert.True(t, d.Recorded)
}

func TestBank_RestoreCanonicalizesStatus(t *testing.T) {
	b := New(fourDoors)
	_, invalid := b.Restore(map[string]Record{
		"door_1": {Status: "closed", UserID: intPtr(2)},
		"door_2": {Status: "open", UserID: intPtr(3)},
		"door_3": {Status: "jammed", UserID: intPtr(4)},
		"door_4": {Status: "jammed"},
	})
	assert.Equal(t, []string{"door_3", "door_4"}, invalid)

	tests := []struct {
		door string
		want Status
	}{
		{"door_1", StatusUsed},
		{"door_2", StatusOpen},
		{"door_3", StatusUsed},
		{"door_4", StatusEmpty},
	}
	for _, tc := range tests {
		d, _ := b.Get(tc.door)
		assert.Equal(t, tc.want, d.Status, tc.door)
	}

	// a restored lowercase "open" still closes normally
	require.NoError(t, b.MarkClosed("door_2"))
}

func TestBank_CloneAndChanged(t *testing.T) {
	b := New(fourDoors)
	staged := b.Clone()
	require.NoError(t, staged.Assign("door_1", 0))

	assert.Equal(t, []string{"door_1"}, staged.Changed(b))
	assert.True(t, b.doors["door_1"].Free())
}

func TestBank_Resolve(t *testing.T) {
	b := New(fourDoors)
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"door_1", "door_1", true},
		{"DOOR-2", "door_2", true},
		{" Door 3 ", "door_3", true},
		{"door_5", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := b.Resolve(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"EMPTY", StatusEmpty, false},
		{"open", StatusOpen, false},
		{"Used", StatusUsed, false},
		{"closed", StatusUsed, false},
		{"broken", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStatus(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "cua_1", NormalizeName("Cửa 1"))
	assert.Equal(t, "door_1", NormalizeName("Door-1"))
}

// TestBank_NoIdentityHoldsTwoDoors drives random assign/close/release
// sequences and checks door exclusivity after each step.
func TestBank_NoIdentityHoldsTwoDoors(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := New(fourDoors)
		steps := rapid.IntRange(1, 80).Draw(rt, "steps")

		for range steps {
			door := rapid.SampledFrom(fourDoors).Draw(rt, "door")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_ = b.Assign(door, rapid.IntRange(0, 5).Draw(rt, "id"))
			case 1:
				_ = b.MarkClosed(door)
			case 2:
				_ = b.Release(door)
			}

			owners := make(map[int]string)
			for _, d := range b.Doors() {
				if d.AssignedID == nil {
					if d.Status != StatusEmpty {
						rt.Fatalf("free door %s has status %s", d.Name, d.Status)
					}
					continue
				}
				if prev, dup := owners[*d.AssignedID]; dup {
					rt.Fatalf("identity %d holds %s and %s", *d.AssignedID, prev, d.Name)
				}
				owners[*d.AssignedID] = d.Name
			}
		}
	})
}

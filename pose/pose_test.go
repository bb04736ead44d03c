package pose

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optable/kinematics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *kinematics.Registry {
	t.Helper()
	reg := kinematics.NewRegistry()
	for _, cfg := range []kinematics.AxisConfig{
		{ID: "back.x", Kind: kinematics.Angular, Limits: kinematics.Limits{Min: -40, Max: 80}, Initial: 12},
		{ID: "base.x", Kind: kinematics.Angular, Limits: kinematics.Limits{Min: -30, Max: 30}, Initial: -5},
		{ID: "slide.z", Kind: kinematics.Linear, Limits: kinematics.Limits{Min: -0.3, Max: 0.3}, Initial: 0.1},
	} {
		a, err := kinematics.NewAxis(cfg)
		require.NoError(t, err)
		require.NoError(t, reg.Register(a))
	}
	return reg
}

// snapshotOpts ignores identity and timestamps when comparing snapshots
var snapshotOpts = cmp.Options{
	cmpopts.IgnoreFields(Snapshot{}, "ID", "SavedAt"),
	cmpopts.EquateApprox(0, 1e-9),
}

func TestCapture(t *testing.T) {
	reg := testRegistry(t)

	snap := Capture("Prep", reg, true)
	want := Snapshot{
		Name:     "Prep",
		Values:   map[string]float64{"back.x": 12, "base.x": -5, "slide.z": 0.1},
		Reversed: true,
	}
	if diff := cmp.Diff(want, snap, snapshotOpts); diff != "" {
		t.Errorf("Capture mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, snap.SavedAt.IsZero())
	assert.NotEqual(t, snap.ID, Capture("Prep", reg, true).ID)
}

func TestLevelZero(t *testing.T) {
	reg := testRegistry(t)

	snap := LevelZero("Level Zero", reg)
	assert.Equal(t, map[string]float64{"back.x": 0, "base.x": 0}, snap.Values)
	assert.False(t, snap.Reversed)
}

func TestSnapshotDetails(t *testing.T) {
	snap := New("Flex", map[string]float64{"leg.x": -20, "back.x": -20}, true)
	assert.Equal(t, "Flex (reversed): back.x=-20.000, leg.x=-20.000", snap.Details())
	assert.Equal(t, "<empty>", Snapshot{}.Details())
}

func TestSnapshotCloneIsolated(t *testing.T) {
	values := map[string]float64{"back.x": 1}
	snap := New("A", values, false)
	values["back.x"] = 99
	assert.Equal(t, 1.0, snap.Values["back.x"])

	c := snap.Clone()
	c.Values["back.x"] = 5
	assert.Equal(t, 1.0, snap.Values["back.x"])
}

func TestStoreSaveLoad(t *testing.T) {
	store, err := NewStore(5, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 5, store.Len())

	snap := New("Lithotomy", map[string]float64{"leg.x": -45}, false)
	require.NoError(t, store.Save(3, snap))
	assert.True(t, store.IsOccupied(3))

	got, err := store.Load(3)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	// mutating the loaded copy leaves the slot intact
	got.Values["leg.x"] = 0
	again, err := store.Load(3)
	require.NoError(t, err)
	assert.Equal(t, -45.0, again.Values["leg.x"])

	details, err := store.Details(3)
	require.NoError(t, err)
	assert.Equal(t, "Lithotomy: leg.x=-45.000", details)
}

func TestStoreRejections(t *testing.T) {
	store, err := NewStore(3, quietLogger())
	require.NoError(t, err)

	snap := New("A", map[string]float64{"back.x": 1}, false)

	assert.ErrorIs(t, store.Save(-1, snap), ErrInvalidSlot)
	assert.ErrorIs(t, store.Save(3, snap), ErrInvalidSlot)
	assert.ErrorIs(t, store.Save(1, Snapshot{}), ErrEmptyName)
	assert.False(t, store.IsOccupied(1))

	_, err = store.Load(1)
	assert.ErrorIs(t, err, ErrEmptySlot)
	_, err = store.Load(7)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	assert.False(t, store.IsOccupied(9))
	_, err = store.Details(9)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, err = NewStore(0, nil)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestStoreLockedSlot(t *testing.T) {
	store, err := NewStore(4, quietLogger())
	require.NoError(t, err)

	beach := New("Beach Chair", map[string]float64{"back.x": 60, "leg.x": -30}, false)
	require.NoError(t, store.Preload(0, beach, true))
	assert.True(t, store.IsLocked(0))

	err = store.Save(0, New("Overwrite", map[string]float64{"back.x": 0}, false))
	assert.ErrorIs(t, err, ErrLockedSlot)
	assert.ErrorIs(t, store.Clear(0), ErrLockedSlot)

	got, err := store.Load(0)
	require.NoError(t, err)
	if diff := cmp.Diff(beach, got); diff != "" {
		t.Errorf("locked slot changed (-want +got):\n%s", diff)
	}

	assert.ErrorIs(t, store.Preload(4, beach, true), ErrInvalidSlot)
	assert.ErrorIs(t, store.Preload(1, Snapshot{}, false), ErrEmptyName)
}

func TestStoreClearAndList(t *testing.T) {
	store, err := NewStore(3, quietLogger())
	require.NoError(t, err)

	require.NoError(t, store.Preload(0, New("Beach Chair", nil, false), true))
	require.NoError(t, store.Save(2, New("Mine", nil, false)))

	assert.Equal(t, []Slot{
		{Index: 0, Name: "Beach Chair", Locked: true},
		{Index: 1},
		{Index: 2, Name: "Mine"},
	}, store.List())

	require.NoError(t, store.Clear(2))
	assert.False(t, store.IsOccupied(2))
	assert.ErrorIs(t, store.Clear(5), ErrInvalidSlot)
}

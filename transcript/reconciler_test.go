package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendMergesSameRole(t *testing.T) {
	r := NewReconciler()

	r.Append(RoleUser, "hel")
	r.Append(RoleUser, "lo")
	r.Append(RoleHost, "hi")

	turns := r.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, RoleHost, turns[1].Role)
	assert.Equal(t, "hi", turns[1].Text)
}

func TestAppendRoleSwitchNeverMergesAcrossSpeakers(t *testing.T) {
	r := NewReconciler()

	r.Append(RoleUser, "a")
	r.Append(RoleHost, "b")
	r.Append(RoleUser, "c")

	turns := r.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "a", turns[0].Text)
	assert.Equal(t, "b", turns[1].Text)
	assert.Equal(t, "c", turns[2].Text)
}

func TestTurnIDStableWhileMerging(t *testing.T) {
	r := NewReconciler()

	r.Append(RoleHost, "first ")
	id := r.Turns()[0].ID
	require.NotEmpty(t, id)

	r.Append(RoleHost, "second")
	turns := r.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, id, turns[0].ID)
}

func TestEmptyFragmentIgnored(t *testing.T) {
	r := NewReconciler()
	updates := 0
	r.OnUpdate = func([]Turn) { updates++ }

	r.Append(RoleUser, "")
	assert.Empty(t, r.Turns())
	assert.Zero(t, updates)
}

func TestOnUpdateReceivesSnapshots(t *testing.T) {
	r := NewReconciler()

	var last []Turn
	r.OnUpdate = func(turns []Turn) { last = turns }

	r.Append(RoleUser, "one")
	require.Len(t, last, 1)

	// Mutating the snapshot must not leak back into the reconciler.
	last[0].Text = "tampered"
	assert.Equal(t, "one", r.Turns()[0].Text)
}

func TestReset(t *testing.T) {
	r := NewReconciler()
	r.Append(RoleUser, "x")
	r.Reset()
	assert.Empty(t, r.Turns())

	// A fresh conversation starts a new turn list.
	r.Append(RoleHost, "y")
	require.Len(t, r.Turns(), 1)
}

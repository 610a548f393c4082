// Package transcript merges incremental transcription fragments into a
// stable ordered list of display turns.
package transcript

import (
	"sync"

	"github.com/google/uuid"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleHost Role = "host"
)

// Turn is one displayed utterance. Turns are append-only: text grows while
// the same speaker keeps talking, and the ID and position never change.
type Turn struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Reconciler folds an ordered stream of (fragment, role) deltas into turns.
// A fragment with the same role as the most recent turn appends to it; a
// role switch opens a new turn at the end of the list. Same-role fragments
// separated by another speaker never merge.
type Reconciler struct {
	// OnUpdate receives a snapshot of the ordered turns after each append.
	OnUpdate func(turns []Turn)

	mu    sync.Mutex
	turns []Turn
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Append folds one fragment into the turn list.
func (r *Reconciler) Append(role Role, fragment string) {
	if fragment == "" {
		return
	}

	r.mu.Lock()
	if n := len(r.turns); n > 0 && r.turns[n-1].Role == role {
		r.turns[n-1].Text += fragment
	} else {
		r.turns = append(r.turns, Turn{
			ID:   uuid.New().String(),
			Role: role,
			Text: fragment,
		})
	}
	snapshot := r.snapshotLocked()
	onUpdate := r.OnUpdate
	r.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snapshot)
	}
}

// Turns returns a snapshot of the ordered turn list.
func (r *Reconciler) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Reset clears the transcript. Used only when the chat view closes.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.turns = nil
	r.mu.Unlock()
}

func (r *Reconciler) snapshotLocked() []Turn {
	out := make([]Turn, len(r.turns))
	copy(out, r.turns)
	return out
}

// Package guard holds the per-thread state of a guarded call: the reentrancy
// flag, the checkpoint a fault resumes at, and the single slot that carries a
// panic raised inside the guarded operation back out of it.
//
// A State is only ever touched by the thread it belongs to, so it carries no
// lock. Callers must hold runtime.LockOSThread from Current until they are
// done with the returned State.
package guard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/DataExMachina-dev/segvtest-go/internal/threadid"
)

// ErrNested is returned when a guard is established on a thread that already
// has one active.
var ErrNested = errors.New("Nested segmentation fault assertion is not supported.")

// Checkpoint identifies the resumption point of one guarded call.
type Checkpoint struct {
	ID uuid.UUID
}

// State is the guard state of one OS thread.
type State struct {
	active bool
	target *Checkpoint
	// nested is set when a second guard was requested while this one was
	// active.
	nested bool

	captured    interface{}
	hasCaptured bool
}

// states maps thread ids to *State. Entries live for the life of the process
// and are reset, not removed, when a guarded call finishes.
var states sync.Map

// Current returns the State of the calling thread, creating it on first use.
func Current() *State {
	id := threadid.Current()
	if s, ok := states.Load(id); ok {
		return s.(*State)
	}
	s, _ := states.LoadOrStore(id, &State{})
	return s.(*State)
}

// Establish marks the guard active and returns the checkpoint that faults
// inside the call resume at. It fails with ErrNested if the guard is already
// active, recording the attempt on the active guard.
func (s *State) Establish() (*Checkpoint, error) {
	if s.active {
		s.nested = true
		return nil, ErrNested
	}
	if s.hasCaptured {
		return nil, fmt.Errorf("guard: capture slot still holds %v", s.captured)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}
	s.target = &Checkpoint{ID: id}
	s.active = true
	return s.target, nil
}

// Clear resets the state so the next guarded call on this thread starts clean.
func (s *State) Clear() {
	*s = State{}
}

// Active reports whether a guarded call is in progress on this thread.
func (s *State) Active() bool {
	return s.active
}

// Target returns the checkpoint of the active guard, or nil.
func (s *State) Target() *Checkpoint {
	return s.target
}

// NestedAttempted reports whether a nested guard was rejected while this one
// was active.
func (s *State) NestedAttempted() bool {
	return s.nested
}

// Capture stores v in the capture slot. A full slot keeps its first value.
func (s *State) Capture(v interface{}) {
	if s.hasCaptured {
		return
	}
	s.captured = v
	s.hasCaptured = true
}

// TakeCaptured empties the capture slot and returns what it held.
func (s *State) TakeCaptured() (interface{}, bool) {
	v, ok := s.captured, s.hasCaptured
	s.captured, s.hasCaptured = nil, false
	return v, ok
}

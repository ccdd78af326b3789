package segvtest

import (
	"fmt"

	"github.com/google/uuid"
)

// Outcome says how a guarded call ended.
type Outcome int8

const (
	// NoFault means the function returned without an invalid memory access.
	NoFault Outcome = iota // "no fault"
	// Faulted means the function was cut short by an invalid memory access.
	Faulted // "faulted"
	// NestedGuard means the call was rejected because another guarded call
	// was already running on the same goroutine.
	NestedGuard // "nested guard"
)

var outcomeStrings = [...]string{
	NoFault:     "no fault",
	Faulted:     "faulted",
	NestedGuard: "nested guard",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeStrings) {
		return fmt.Sprintf("Outcome(%d)", int8(o))
	}
	return outcomeStrings[o]
}

// Report describes a single call to Run.
type Report struct {
	Outcome Outcome
	// Fault is the runtime error the invalid access was reported as. Set
	// only when Outcome is Faulted.
	Fault error
	// Addr is the faulting address. The runtime only reports it for faults
	// outside the zero page, so it is valid only if AddrKnown.
	Addr      uintptr
	AddrKnown bool
	// Checkpoint identifies the guard the call ran under.
	Checkpoint uuid.UUID
}

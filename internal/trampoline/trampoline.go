// Package trampoline runs an operation under a guard: it establishes the
// checkpoint, runs the operation through the relay, and reports whether the
// operation was cut short by an intercepted fault.
package trampoline

import (
	"runtime"

	"github.com/google/uuid"

	"github.com/DataExMachina-dev/segvtest-go/internal/guard"
	"github.com/DataExMachina-dev/segvtest-go/internal/interceptor"
)

// Result is the outcome of one Invoke.
type Result struct {
	// Faulted is set if the operation was aborted by an intercepted fault.
	Faulted bool
	Fault   interceptor.Fault
	// MaskErr is set if the interceptor could not unblock the fault signals
	// while jumping back. The fault itself was still intercepted.
	MaskErr error
	// Checkpoint identifies the guard the operation ran under.
	Checkpoint uuid.UUID
	// Captured holds the value the operation panicked with, if HasCaptured.
	// The caller is expected to re-panic with it.
	Captured    interface{}
	HasCaptured bool
}

// Invoke runs op on the calling goroutine under a guard.
//
// If op performs an invalid memory access, the remainder of op is abandoned:
// control returns here and Result.Faulted is set. Deferred calls in op's
// frames run as the jump unwinds, but nothing else op changed is undone.
//
// Guards do not nest. Invoke returns guard.ErrNested if called while another
// Invoke is running on the same goroutine, and the outer Invoke then returns
// guard.ErrNested as well.
func Invoke(op func()) (res Result, err error) {
	if err := interceptor.Install(); err != nil {
		return Result{}, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	st := guard.Current()
	cp, err := st.Establish()
	if err != nil {
		return Result{}, err
	}
	defer st.Clear()

	restore := interceptor.Arm()
	defer restore()

	// Resumption point. Deferred calls run in reverse, so this runs before
	// the guard is cleared.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		j, ok := r.(*interceptor.Jump)
		if !ok || j.Checkpoint != cp {
			panic(r)
		}
		st.TakeCaptured()
		res, err = finish(st, Result{Faulted: true, Fault: j.Fault, MaskErr: j.MaskErr, Checkpoint: cp.ID})
	}()

	relay(st, op)

	res = Result{Checkpoint: cp.ID}
	res.Captured, res.HasCaptured = st.TakeCaptured()
	return finish(st, res)
}

func finish(st *guard.State, res Result) (Result, error) {
	if st.NestedAttempted() {
		return Result{Checkpoint: res.Checkpoint}, guard.ErrNested
	}
	return res, nil
}

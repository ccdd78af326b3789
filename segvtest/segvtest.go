// Package segvtest lets tests assert that a piece of code performs an
// invalid memory access, without the fault taking the test binary down.
//
//	segvtest.Require(t, func() {
//		*(*int32)(unsafe.Pointer(segvtest.LowAddress)) = 1
//	}, "writing to %#x should fail", segvtest.LowAddress)
//
// # Abandoned work
//
// When the fault happens, the rest of the function is abandoned and control
// returns straight to the Run, Check, Assert or Require call. Deferred calls
// between the fault and that call still run, but nothing the function
// changed before the fault is undone, and locks it held stay held.
//
// Keep the guarded function as small as possible: ideally just the access
// that is expected to fault.
//
// # Scope
//
// Only faults on the goroutine that called Run are intercepted. A fault on a
// goroutine started by the guarded function, inside cgo code, or inside the
// runtime keeps the runtime's default behavior and crashes the process.
//
// Guards do not nest: calling Run from inside a function guarded by Run on
// the same goroutine is rejected with ErrNestedGuard.
package segvtest

import (
	"errors"
	"fmt"

	"github.com/DataExMachina-dev/segvtest-go/internal/guard"
	"github.com/DataExMachina-dev/segvtest-go/internal/interceptor"
	"github.com/DataExMachina-dev/segvtest-go/internal/trampoline"
)

// LowAddress is an address inside the zero page, which is never mapped.
const LowAddress uintptr = 0x08

// ErrNestedGuard is returned, or panicked with, when a guarded call is made
// while another one is running on the same goroutine.
var ErrNestedGuard = guard.ErrNested

// ErrUnsupportedPlatform is returned when faults cannot be intercepted on
// this platform.
var ErrUnsupportedPlatform = interceptor.ErrUnsupportedPlatform

// UnguardedFaultError is panicked with if a fault reaches the interceptor on
// a thread with no active guard. Seeing it means the package's own
// bookkeeping is broken; it is never recovered from.
type UnguardedFaultError = interceptor.UnguardedFaultError

// Install prepares the process for intercepting faults. Run, Check, Assert
// and Require call it themselves; calling it up front only moves the cost
// and surfaces the error early. Installation happens once per process and is
// never undone.
func Install(opts ...Option) error {
	return install(makeConfig(opts))
}

func install(cfg config) error {
	if err := interceptor.Install(); err != nil {
		err = fmt.Errorf("failed to install fault interceptor: %w", err)
		cfg.errorLogger(err)
		return err
	}
	return nil
}

// ProtectedAddress returns an address inside a page that is mapped with no
// access rights, or 0 if Install fails.
func ProtectedAddress() uintptr {
	return interceptor.ProtectedAddress()
}

// Run calls f and reports whether it performed an invalid memory access.
//
// If f panics, Run panics with the same value once the guard is down. If the
// guard cannot be established, Run returns an error: ErrNestedGuard when
// called from inside another guarded call on the same goroutine, or the
// installation error.
func Run(f func(), opts ...Option) (Report, error) {
	cfg := makeConfig(opts)
	if err := install(cfg); err != nil {
		return Report{}, err
	}

	res, err := trampoline.Invoke(f)
	if errors.Is(err, guard.ErrNested) {
		cfg.errorLogger(err)
		return Report{Outcome: NestedGuard, Checkpoint: res.Checkpoint}, ErrNestedGuard
	}
	if err != nil {
		cfg.errorLogger(err)
		return Report{}, err
	}
	if res.HasCaptured {
		cfg.logf("segvtest: checkpoint %s: relaying panic: %v", res.Checkpoint, res.Captured)
		panic(res.Captured)
	}
	if !res.Faulted {
		return Report{Outcome: NoFault, Checkpoint: res.Checkpoint}, nil
	}

	if res.MaskErr != nil {
		cfg.errorLogger(res.MaskErr)
	}
	rep := Report{
		Outcome:    Faulted,
		Fault:      res.Fault.Err,
		Addr:       res.Fault.Addr,
		AddrKnown:  res.Fault.AddrKnown,
		Checkpoint: res.Checkpoint,
	}
	if rep.AddrKnown {
		cfg.logf("segvtest: checkpoint %s: intercepted fault at %#x: %v", rep.Checkpoint, rep.Addr, rep.Fault)
	} else {
		cfg.logf("segvtest: checkpoint %s: intercepted fault: %v", rep.Checkpoint, rep.Fault)
	}
	return rep, nil
}

// Check calls f and reports whether it performed an invalid memory access.
// It is Run with the errors turned into panics.
func Check(f func(), opts ...Option) bool {
	rep, err := Run(f, opts...)
	if err != nil {
		panic(err)
	}
	return rep.Outcome == Faulted
}

// Package interceptor turns invalid memory accesses on a guarded goroutine
// into a transfer of control back to the guard's checkpoint.
//
// The Go runtime already owns the process's SIGSEGV/SIGBUS handlers (and the
// vectored exception handler on windows) and converts a fault on a Go
// goroutine into a runtime.Error panic. Faults inside the zero page always
// take that path; anything else only does so when the goroutine has
// debug.SetPanicOnFault enabled, which is what Arm is for. Intercept is then
// called with the recovered fault and performs the jump.
//
// A fault that never reaches Intercept is not intercepted: faults on other
// goroutines, in cgo code or in the runtime itself keep the runtime's default
// behavior, which is to crash the process.
package interceptor

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"unsafe"

	"github.com/DataExMachina-dev/segvtest-go/internal/guard"
)

// Fault describes an intercepted invalid memory access.
type Fault struct {
	// Err is the runtime error the fault was reported as.
	Err runtime.Error
	// Addr is the faulting address, valid only if AddrKnown.
	Addr      uintptr
	AddrKnown bool
}

// Jump is the panic value Intercept uses to unwind to a checkpoint. Only the
// trampoline that established Checkpoint may recover it.
type Jump struct {
	Checkpoint *guard.Checkpoint
	Fault      Fault
	// MaskErr is set if the fault signals could not be unblocked before the
	// jump.
	MaskErr error
}

// UnguardedFaultError is raised when Intercept is reached on a thread with no
// active guard. This is not a supported recovery path.
type UnguardedFaultError struct {
	Fault Fault
}

func (e *UnguardedFaultError) Error() string {
	return fmt.Sprintf("invalid memory access with no active guard: %v", e.Fault.Err)
}

func (e *UnguardedFaultError) Unwrap() error {
	return e.Fault.Err
}

// Install sets up process-wide interception. It is safe to call from any
// number of goroutines; the first call does the work and every call returns
// its result.
func Install() error {
	state.once.Do(state.install)
	return state.err
}

// ProtectedAddress returns an address inside a page reserved with no access
// rights, or 0 if Install has not succeeded.
func ProtectedAddress() uintptr {
	if Install() != nil {
		return 0
	}
	return state.page
}

// Arm makes faults at any address on the calling goroutine recoverable. The
// returned func restores the previous setting and must run on the same
// goroutine.
func Arm() (restore func()) {
	old := debug.SetPanicOnFault(true)
	return func() { debug.SetPanicOnFault(old) }
}

// memoryErrorMessage is the text of the runtime's memory fault error.
const memoryErrorMessage = "runtime error: invalid memory address or nil pointer dereference"

// Classify reports whether a recovered panic value is an invalid memory
// access.
func Classify(r interface{}) (Fault, bool) {
	err, ok := r.(runtime.Error)
	if !ok {
		return Fault{}, false
	}
	// Faults taken under SetPanicOnFault carry their address.
	if a, ok := r.(interface{ Addr() uintptr }); ok {
		return Fault{Err: err, Addr: a.Addr(), AddrKnown: true}, true
	}
	// Faults in the zero page (nil dereferences included) are raised by the
	// runtime without SetPanicOnFault and carry no address; the message is
	// all that identifies them.
	if strings.HasPrefix(err.Error(), memoryErrorMessage) {
		return Fault{Err: err}, true
	}
	return Fault{}, false
}

// Intercept transfers control to the active checkpoint of st by panicking
// with a *Jump. It reads st and never modifies it; the resumed trampoline
// clears it. It does not return.
func Intercept(st *guard.State, f Fault) {
	if !st.Active() {
		panic(&UnguardedFaultError{Fault: f})
	}
	err := restoreSignalMask()
	panic(&Jump{Checkpoint: st.Target(), Fault: f, MaskErr: err})
}

// ErrUnsupportedPlatform is returned by Install when faults cannot be
// recovered from on this platform.
var ErrUnsupportedPlatform = errors.New("OS/architecture combination not supported")

var state processState

type processState struct {
	once sync.Once
	err  error
	page uintptr
}

func (s *processState) install() {
	if err := PlatformSupported(); err != nil {
		s.err = err
		return
	}
	page, err := reservePage()
	if err != nil {
		s.err = fmt.Errorf("failed to reserve protected page: %w", err)
		return
	}
	if err := probe(page); err != nil {
		s.err = fmt.Errorf("fault probe failed: %w", err)
		return
	}
	s.page = page
}

// probeSink keeps the probe's load from being optimized away.
var probeSink byte

// probe reads addr and checks that the runtime hands the fault back as a
// recoverable panic.
func probe(addr uintptr) (err error) {
	restore := Arm()
	defer restore()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := Classify(r); !ok {
			err = fmt.Errorf("unexpected panic: %v", r)
			return
		}
		err = nil
	}()
	probeSink = *(*byte)(unsafe.Pointer(addr))
	return fmt.Errorf("read of %#x did not fault", addr)
}

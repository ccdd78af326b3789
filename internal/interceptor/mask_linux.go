//go:build linux
// +build linux

package interceptor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pthreadSigmask = unix.PthreadSigmask

// restoreSignalMask unblocks the fault signals on the calling thread. The
// kernel blocks a signal while its handler runs; a thread that leaves the
// handler other than by returning from it would keep it blocked and the next
// fault on that thread would not be delivered.
//
// By the time this runs the runtime's handler has already returned through
// sigreturn, which restored the mask, so a failure here does not stop the
// next fault from being delivered. It is reported to the caller rather than
// treated as fatal.
func restoreSignalMask() error {
	var set unix.Sigset_t
	sigaddset(&set, unix.SIGSEGV)
	sigaddset(&set, unix.SIGBUS)
	if err := pthreadSigmask(unix.SIG_UNBLOCK, &set, nil); err != nil {
		return fmt.Errorf("failed to unblock fault signals: %w", err)
	}
	return nil
}

// x/sys/unix has no sigaddset.
func sigaddset(set *unix.Sigset_t, sig unix.Signal) {
	n := uint(sig - 1)
	bits := uint(unsafe.Sizeof(set.Val[0]) * 8)
	set.Val[n/bits] |= 1 << (n % bits)
}

package segvtest

import "unsafe"

// Dereference copies len(dst) bytes starting at ptr into dst. It returns
// false, leaving dst partially written, if the memory could not be read.
//
// Dereference is a guarded call: it cannot be used from inside Run, Check,
// Assert or Require on the same goroutine, and panics with ErrNestedGuard if
// it is.
//
//go:noinline
func Dereference(dst []byte, ptr uintptr) (ok bool) {
	if len(dst) == 0 {
		return true
	}
	// unsafe.Slice panics rather than faults on a nil ptr or a range that
	// wraps around.
	if ptr == 0 || ptr+uintptr(len(dst)) < ptr {
		return false
	}
	return !Check(func() {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(dst)))
	})
}

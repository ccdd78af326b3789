// Package threadid identifies the OS thread the caller is running on.
//
// Callers must hold runtime.LockOSThread for the returned value to stay
// meaningful.
package threadid

// Current returns an identifier for the calling thread.
func Current() uint64 {
	return current()
}

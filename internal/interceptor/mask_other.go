//go:build !linux
// +build !linux

package interceptor

// restoreSignalMask is a no-op. On windows the runtime's vectored exception
// handler has already marked the access violation handled and redirected the
// thread, so there is no mask to restore. Other unix platforms leave the
// signal handler through sigreturn, which restores the mask.
func restoreSignalMask() error { return nil }

//go:build windows
// +build windows

package interceptor

import (
	"os"

	"golang.org/x/sys/windows"
)

// OsSupported reports whether the operating system is supported.
func OsSupported() bool {
	return true
}

func reservePage() (uintptr, error) {
	return windows.VirtualAlloc(
		0,
		uintptr(os.Getpagesize()),
		windows.MEM_RESERVE|windows.MEM_COMMIT,
		windows.PAGE_NOACCESS,
	)
}

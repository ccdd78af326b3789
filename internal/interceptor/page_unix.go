//go:build unix
// +build unix

package interceptor

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// OsSupported reports whether the operating system is supported.
func OsSupported() bool {
	return true
}

// reservedPage keeps the mapping referenced for the life of the process.
var reservedPage []byte

func reservePage() (uintptr, error) {
	b, err := unix.Mmap(-1, 0, os.Getpagesize(), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, err
	}
	reservedPage = b
	return uintptr(unsafe.Pointer(&b[0])), nil
}

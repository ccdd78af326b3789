//go:build !unix && !windows
// +build !unix,!windows

package interceptor

// OsSupported reports whether the operating system is supported.
func OsSupported() bool {
	return false
}

func reservePage() (uintptr, error) {
	return 0, ErrUnsupportedPlatform
}

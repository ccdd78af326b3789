package interceptor

import (
	"fmt"
	"runtime"
)

// PlatformSupported returns an error if the runtime does not turn invalid
// memory accesses into recoverable panics on this platform.
func PlatformSupported() error {
	if !OsSupported() {
		return fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}
	return nil
}

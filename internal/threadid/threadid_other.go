//go:build !linux && !windows
// +build !linux,!windows

package threadid

import (
	"bytes"
	"runtime"
	"strconv"
)

// There is no portable gettid here, so the goroutine id stands in for the
// thread. A goroutine locked to its thread never migrates, and a thread
// locked to a goroutine runs nothing else, so the two are interchangeable
// while the lock is held.
func current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:..."
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("threadid: cannot parse goroutine id from " + strconv.Quote(string(buf[:n])))
	}
	return id
}

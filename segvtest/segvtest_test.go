package segvtest_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/DataExMachina-dev/segvtest-go/segvtest"
)

var sink int32

func write(addr uintptr) {
	*(*int32)(unsafe.Pointer(addr)) = 1
}

func read(addr uintptr) {
	sink = *(*int32)(unsafe.Pointer(addr))
}

func TestBasicSuccessWrite(t *testing.T) {
	segvtest.Require(t, func() { write(segvtest.LowAddress) })
}

func TestBasicSuccessRead(t *testing.T) {
	segvtest.Require(t, func() { read(segvtest.LowAddress) })
}

func TestProtectedPage(t *testing.T) {
	addr := segvtest.ProtectedAddress()
	require.NotZero(t, addr)

	rep, err := segvtest.Run(func() { write(addr) })
	require.NoError(t, err)
	require.Equal(t, segvtest.Faulted, rep.Outcome)
	require.True(t, rep.AddrKnown)
	require.Equal(t, addr, rep.Addr)
	require.Error(t, rep.Fault)

	require.True(t, segvtest.Check(func() { read(addr) }))
}

// A second fault on the same thread must be delivered as well, which it
// would not be if the first one left the signal blocked.
func TestBasicSuccessTwice(t *testing.T) {
	segvtest.Require(t, func() { write(segvtest.LowAddress) })
	segvtest.Require(t, func() { write(segvtest.LowAddress) })
}

func TestRunNoFault(t *testing.T) {
	var val int32
	rep, err := segvtest.Run(func() { write(uintptr(unsafe.Pointer(&val))) })
	require.NoError(t, err)
	require.Equal(t, segvtest.NoFault, rep.Outcome)
	require.Nil(t, rep.Fault)
	require.NotEqual(t, uuid.Nil, rep.Checkpoint)
	require.Equal(t, int32(1), val)
}

type recordingT struct {
	errors []string
	failed bool
	logs   []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {
	r.failed = true
}

func (r *recordingT) Logf(format string, args ...interface{}) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func TestBasicFailure(t *testing.T) {
	var val int32
	rt := &recordingT{}
	ok := segvtest.Assert(rt, func() { write(uintptr(unsafe.Pointer(&val))) })
	require.False(t, ok)
	require.Len(t, rt.errors, 1)
	require.Contains(t, rt.errors[0], "Expected a segmentation fault.")
	require.False(t, rt.failed)
}

func TestFailureCustomMessage(t *testing.T) {
	rt := &recordingT{}
	segvtest.Require(rt, func() {}, "Hello world, %d!", 1234)
	require.True(t, rt.failed)
	require.Len(t, rt.errors, 1)
	require.Contains(t, rt.errors[0], "Hello world, 1234!")
	require.NotContains(t, rt.errors[0], segvtest.DefaultMessage)
}

func TestAssertLogsFault(t *testing.T) {
	rt := &recordingT{}
	require.True(t, segvtest.Assert(rt, func() { write(segvtest.LowAddress) }))
	require.Empty(t, rt.errors)
	require.Len(t, rt.logs, 1)
	require.Contains(t, rt.logs[0], "intercepted fault")
}

func TestNestedFailure(t *testing.T) {
	require.PanicsWithError(t, "Nested segmentation fault assertion is not supported.", func() {
		segvtest.Check(func() {
			segvtest.Check(func() { write(segvtest.LowAddress) })
		})
	})
}

func TestNestedRunIgnoringError(t *testing.T) {
	var inner error
	var logged []error
	rep, err := segvtest.Run(func() {
		_, inner = segvtest.Run(func() {})
	}, segvtest.WithErrorLogger(func(err error) { logged = append(logged, err) }))
	require.ErrorIs(t, inner, segvtest.ErrNestedGuard)
	require.ErrorIs(t, err, segvtest.ErrNestedGuard)
	require.Equal(t, segvtest.NestedGuard, rep.Outcome)
	require.Len(t, logged, 1)
}

func TestNestedAssert(t *testing.T) {
	rt := &recordingT{}
	ok := segvtest.Assert(rt, func() {
		segvtest.Assert(rt, func() { write(segvtest.LowAddress) })
	})
	require.False(t, ok)
	require.Len(t, rt.errors, 2)
	for _, e := range rt.errors {
		require.Contains(t, e, "Nested segmentation fault assertion is not supported.")
	}
}

func TestRelaysPanic(t *testing.T) {
	require.PanicsWithValue(t, "boom", func() {
		_, _ = segvtest.Run(func() { panic("boom") })
	})

	boom := errors.New("boom")
	defer func() {
		r := recover()
		require.Same(t, boom, r)
	}()
	segvtest.Check(func() { panic(boom) })
	t.Fatal("Check returned")
}

// After a relayed panic the goroutine can run guarded calls again.
func TestRelayLeavesGuardClean(t *testing.T) {
	require.Panics(t, func() {
		segvtest.Check(func() { panic("boom") })
	})
	segvtest.Require(t, func() { write(segvtest.LowAddress) })
	assert.False(t, segvtest.Check(func() {}))
}

func TestFailNowInsideGuard(t *testing.T) {
	rt := &recordingT{}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		segvtest.Require(rt, func() {
			// A nested Require fails and its FailNow exits the goroutine,
			// like t.FailNow would.
			segvtest.Require(&goexitT{rt}, func() {})
		})
	}()
	wg.Wait()
	require.NotEmpty(t, rt.errors)
}

type goexitT struct{ *recordingT }

func (g *goexitT) FailNow() {
	g.recordingT.FailNow()
	runtime.Goexit()
}

func TestInstallConcurrent(t *testing.T) {
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error { return segvtest.Install() })
	}
	require.NoError(t, g.Wait())
	require.NoError(t, segvtest.Install())
}

func TestParallelGuards(t *testing.T) {
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				fault := (i+j)%2 == 0
				got := segvtest.Check(func() {
					if fault {
						write(segvtest.LowAddress)
					}
				})
				if got != fault {
					return fmt.Errorf("goroutine %d iteration %d: got %v, want %v", i, j, got, fault)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "no fault", segvtest.NoFault.String())
	require.Equal(t, "faulted", segvtest.Faulted.String())
	require.Equal(t, "nested guard", segvtest.NestedGuard.String())
	require.True(t, strings.HasPrefix(segvtest.Outcome(9).String(), "Outcome("))
}

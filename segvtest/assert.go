package segvtest

import (
	"fmt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DefaultMessage is reported by Assert and Require when the function did not
// fault and no message was given.
const DefaultMessage = "Expected a segmentation fault."

// Assert asserts that f performs an invalid memory access.
//
// msgAndArgs replaces DefaultMessage: either a single value, or a format
// string followed by its arguments.
//
//	segvtest.Assert(t, func() { *p = 1 }, "writing to %p should fail", p)
func Assert(t assert.TestingT, f func(), msgAndArgs ...interface{}) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	rep, err := Run(f, testLogger(t))
	if err != nil {
		return assert.Fail(t, err.Error())
	}
	if rep.Outcome != Faulted {
		return assert.Fail(t, failureMessage(msgAndArgs))
	}
	return true
}

// Require is like Assert but stops the test with t.FailNow on failure.
func Require(t require.TestingT, f func(), msgAndArgs ...interface{}) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if !Assert(t, f, msgAndArgs...) {
		t.FailNow()
	}
}

func testLogger(t interface{}) Option {
	if l, ok := t.(interface {
		Logf(format string, args ...interface{})
	}); ok {
		return WithLogf(l.Logf)
	}
	return optionFunc(func(*config) {})
}

func failureMessage(msgAndArgs []interface{}) string {
	switch len(msgAndArgs) {
	case 0:
		return DefaultMessage
	case 1:
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprintf("%+v", msgAndArgs[0])
	default:
		if format, ok := msgAndArgs[0].(string); ok {
			return fmt.Sprintf(format, msgAndArgs[1:]...)
		}
		return fmt.Sprint(msgAndArgs...)
	}
}

package trampoline

import (
	"github.com/DataExMachina-dev/segvtest-go/internal/guard"
	"github.com/DataExMachina-dev/segvtest-go/internal/interceptor"
)

// relay calls op. A fault is handed to the interceptor, which unwinds to the
// checkpoint. Any other panic is stored in st's capture slot so that it
// leaves the guarded region as an ordinary return; the caller re-raises it
// once the guard is down. runtime.Goexit is not a panic and passes through.
func relay(st *guard.State, op func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if f, ok := interceptor.Classify(r); ok {
			interceptor.Intercept(st, f)
		}
		st.Capture(r)
	}()
	op()
}

// Package driver runs the target function exactly once on its own
// goroutine and reports its terminal outcome through the probe.
package driver

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync/atomic"

	"github.com/flowlens/flowlens/pkg/probe"
	"github.com/flowlens/flowlens/pkg/schema"
)

// Driver owns the goroutine the target function executes on. A driver
// is single-shot: Start launches the run the first time and is a no-op
// afterwards. The controller polls Alive to distinguish a run that is
// still executing from one that has finished.
type Driver struct {
	probe *probe.Probe
	fn    reflect.Value
	args  []reflect.Value

	started atomic.Bool
	running atomic.Bool

	exc atomic.Pointer[schema.ThreadException]
}

// New prepares a driver for one invocation of fn with args. fn must be
// a callable reflect.Value whose signature matches args.
func New(p *probe.Probe, fn reflect.Value, args []reflect.Value) *Driver {
	return &Driver{probe: p, fn: fn, args: args}
}

// Start launches the run on a dedicated goroutine. A panic escaping the
// target is captured as a ThreadException and surfaced as an error
// event; normal return triggers the completion hook. Repeated calls do
// nothing.
func (d *Driver) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.running.Store(true)

	go func() {
		defer d.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				exc := &schema.ThreadException{
					Message: fmt.Sprintf("%v", r),
					Trace:   string(debug.Stack()),
				}
				d.exc.Store(exc)
				d.probe.Fail(exc.Message, exc.Trace)
			}
		}()

		d.fn.Call(d.args)
		d.probe.Complete()
	}()
}

// Alive reports whether the target is still executing. False before
// Start and after the run reaches any terminal state.
func (d *Driver) Alive() bool {
	return d.running.Load()
}

// Exception returns the failure that terminated the run, or nil if the
// run has not failed.
func (d *Driver) Exception() *schema.ThreadException {
	return d.exc.Load()
}

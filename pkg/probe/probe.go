// Package probe implements the per-statement checkpoint that
// instrumented code reports into, and the two-signal rendezvous that
// lets a controller step a live run one pause at a time.
package probe

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowlens/flowlens/pkg/render"
	"github.com/flowlens/flowlens/pkg/schema"
)

// Probe receives checkpoint calls from the instrumented target and
// pauses the run when a statement's line reaches the armed target. The
// controller side arms targets with ContinueUntil and collects the
// resulting event with WaitForEvent; the executing side calls Step,
// Complete, and Fail. Each cycle produces at most one event.
type Probe struct {
	file string

	target atomic.Int64
	cycle  atomic.Int64
	cond   atomic.Pointer[vm.Program]

	// ready carries probe-to-controller "an event is pending" signals,
	// resume carries controller-to-probe release signals. Both hold at
	// most one signal so repeated sends coalesce instead of blocking.
	ready  chan struct{}
	resume chan struct{}

	mu           sync.Mutex
	pending      *schema.Snapshot
	pendingCycle int64
	last         schema.Snapshot
	fired        bool
	floor        int // last published pause line; later pauses never report below it

	condWarn     func(error)
	condWarnOnce sync.Once
}

// New returns a probe for a run of the named source file. The probe
// starts unarmed: no statement pauses until the first ContinueUntil.
func New(file string) *Probe {
	p := &Probe{
		file:   file,
		ready:  make(chan struct{}, 1),
		resume: make(chan struct{}, 1),
	}
	p.target.Store(math.MaxInt32)
	return p
}

// OnConditionError registers a hook invoked at most once when the pause
// condition fails to evaluate. Evaluation failures count as false.
func (p *Probe) OnConditionError(fn func(error)) {
	p.condWarn = fn
}

// SetCondition installs a pause condition over the locals visible at a
// candidate line. The probe pauses only when the condition holds. An
// empty source clears the condition.
func (p *Probe) SetCondition(src string) error {
	if src == "" {
		p.cond.Store(nil)
		return nil
	}
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compiling pause condition %q: %w", src, err)
	}
	p.cond.Store(prog)
	return nil
}

// Step is the checkpoint executed before each statement of the target
// function. It records the execution state and, when line has reached
// the armed target and the condition (if any) holds, publishes a line
// event and blocks until the controller resumes the run.
func (p *Probe) Step(line int, function string, locals, globals map[string]interface{}) {
	cycle := p.cycle.Load()
	snap := schema.Snapshot{
		Event:    schema.EventLine,
		File:     p.file,
		Function: function,
		Line:     line,
		Locals:   render.Map(locals),
		Globals:  render.Map(globals),
	}

	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()

	if int64(line) < p.target.Load() {
		return
	}
	if prog := p.cond.Load(); prog != nil && !p.condHolds(prog, locals) {
		return
	}
	p.pause(snap, cycle)
}

func (p *Probe) condHolds(prog *vm.Program, locals map[string]interface{}) bool {
	out, err := expr.Run(prog, locals)
	if err != nil {
		if p.condWarn != nil {
			p.condWarnOnce.Do(func() { p.condWarn(err) })
		}
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// pause publishes snap, tagged with the cycle that armed it, and blocks
// until the controller releases the run. Any resume signal left over
// from an earlier cycle is discarded first so a stale signal cannot
// fall straight through the wait.
func (p *Probe) pause(snap schema.Snapshot, cycle int64) {
	select {
	case <-p.resume:
	default:
	}

	p.mu.Lock()
	p.pending = &snap
	p.pendingCycle = cycle
	p.fired = true
	p.floor = snap.Line
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}

	<-p.resume
}

// Complete is the return hook, called once after the target function
// returns. It synthesizes a completion event from the last observed
// state unless the current cycle already produced an event, so a run
// that finishes before reaching the target still reports exactly one
// event.
func (p *Probe) Complete() {
	p.mu.Lock()
	if p.fired {
		p.mu.Unlock()
		return
	}
	snap := p.last
	snap.Event = schema.EventReturn
	p.pending = &snap
	p.pendingCycle = p.cycle.Load()
	p.fired = true
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// Fail publishes a terminal error event carrying the failure that
// escaped the target function, waking any pending controller wait.
func (p *Probe) Fail(message, trace string) {
	p.mu.Lock()
	snap := p.last
	snap.Event = schema.EventError
	snap.Error = message
	snap.Trace = trace
	p.pending = &snap
	p.pendingCycle = p.cycle.Load()
	p.fired = true
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// ContinueUntil starts a new cycle: it arms the probe to pause at the
// first statement whose line is at or past target, discards the
// previous cycle's unconsumed event if any, and releases a paused run.
// A target below the last published pause line is clamped up to it, so
// a run that loops back never reports a line before one it already
// reported.
func (p *Probe) ContinueUntil(target int) {
	p.cycle.Add(1)

	p.mu.Lock()
	if target < p.floor {
		target = p.floor
	}
	p.pending = nil
	p.fired = false
	p.mu.Unlock()

	p.target.Store(int64(target))

	select {
	case <-p.ready:
	default:
	}

	select {
	case p.resume <- struct{}{}:
	default:
	}
}

// WaitForEvent blocks until the current cycle produces an event or the
// timeout expires. A nil snapshot means the wait timed out while the
// run was still between events. A pause published under a cycle that
// has since been re-armed is discarded, not delivered.
func (p *Probe) WaitForEvent(timeout time.Duration) *schema.Snapshot {
	deadline := time.After(timeout)
	for {
		select {
		case <-p.ready:
		case <-deadline:
			return nil
		}

		p.mu.Lock()
		snap := p.pending
		stale := snap != nil && p.pendingCycle != p.cycle.Load()
		p.pending = nil
		p.mu.Unlock()
		if stale {
			continue
		}
		return snap
	}
}

// Last returns the most recently observed execution state, whether or
// not it was published as an event.
func (p *Probe) Last() schema.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

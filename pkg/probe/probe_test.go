package probe

import (
	"strings"
	"testing"
	"time"

	"github.com/flowlens/flowlens/pkg/schema"
)

// runSteps drives a probe the way an instrumented function would: one
// Step per line, a Complete at the end. The returned channel closes
// when the simulated run finishes.
func runSteps(p *Probe, lines []int) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ln := range lines {
			p.Step(ln, "demo", map[string]interface{}{"ln": ln}, nil)
		}
		p.Complete()
	}()
	return done
}

// TestPauseAtTargetLine verifies the probe pauses at the first line at
// or past the target and resumes to completion on the next cycle.
func TestPauseAtTargetLine(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(3)
	done := runSteps(p, []int{1, 2, 4, 5})

	snap := p.WaitForEvent(time.Second)
	if snap == nil {
		t.Fatal("expected a line event, got timeout")
	}
	if snap.Event != schema.EventLine || snap.Line != 4 {
		t.Errorf("event = %s line %d, want line event at 4", snap.Event, snap.Line)
	}
	if snap.Locals["ln"] != 4 {
		t.Errorf("locals = %v, want state at the paused line", snap.Locals)
	}

	select {
	case <-done:
		t.Fatal("run finished while a pause was outstanding")
	default:
	}

	p.ContinueUntil(100)
	snap = p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventReturn {
		t.Fatalf("event = %+v, want completion", snap)
	}
	<-done
}

// TestPrematureCompletion verifies a run that finishes before reaching
// the target still produces exactly one completion event.
func TestPrematureCompletion(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(100)
	done := runSteps(p, []int{1, 2, 3})

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventReturn {
		t.Fatalf("event = %+v, want completion", snap)
	}
	if snap.Line != 3 {
		t.Errorf("line = %d, want last observed line", snap.Line)
	}
	<-done
}

// TestOneEventPerCycle verifies a cycle that already produced its event
// yields nothing more until the next continue.
func TestOneEventPerCycle(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(2)
	runSteps(p, []int{1, 2, 3})

	if snap := p.WaitForEvent(time.Second); snap == nil {
		t.Fatal("expected a line event")
	}
	if snap := p.WaitForEvent(50 * time.Millisecond); snap != nil {
		t.Errorf("second wait produced %+v, want timeout", snap)
	}
}

// TestStaleResumeDiscarded verifies a resume signal buffered before the
// run started does not let the first pause fall through.
func TestStaleResumeDiscarded(t *testing.T) {
	p := New("demo.go")
	// Arming before the run starts leaves a resume signal in the
	// buffer, the normal first-cycle sequence.
	p.ContinueUntil(2)
	done := runSteps(p, []int{1, 2, 3})

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Line != 2 {
		t.Fatalf("event = %+v, want pause at 2", snap)
	}

	select {
	case <-done:
		t.Fatal("pause fell through on the buffered resume signal")
	case <-time.After(50 * time.Millisecond):
	}

	p.ContinueUntil(100)
	p.WaitForEvent(time.Second)
	<-done
}

// TestLoopPausesNonDecreasing verifies that repeating a target inside a
// loop never reports a line before one already reported: the threshold
// is clamped up to the last published pause line.
func TestLoopPausesNonDecreasing(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(6)
	done := runSteps(p, []int{5, 6, 7, 6, 7, 6, 7})

	var got []int
	for {
		snap := p.WaitForEvent(time.Second)
		if snap == nil {
			t.Fatalf("expected an event after %v, got timeout", got)
		}
		if snap.Event == schema.EventReturn {
			break
		}
		got = append(got, snap.Line)
		p.ContinueUntil(6)
	}
	<-done

	prev := 0
	for _, ln := range got {
		if ln < prev {
			t.Fatalf("emitted lines not non-decreasing: %v", got)
		}
		prev = ln
	}
	want := []int{6, 7, 7, 7}
	if len(got) != len(want) {
		t.Fatalf("pause lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pause lines = %v, want %v", got, want)
		}
	}
}

// TestSupersededPauseDiscarded verifies a pause published under a cycle
// that has since been re-armed is dropped instead of delivered.
func TestSupersededPauseDiscarded(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(5)
	superseded := p.cycle.Load()
	p.ContinueUntil(10)

	released := make(chan struct{})
	go func() {
		defer close(released)
		p.pause(schema.Snapshot{Event: schema.EventLine, Line: 5}, superseded)
	}()

	if snap := p.WaitForEvent(100 * time.Millisecond); snap != nil {
		t.Errorf("superseded pause delivered: %+v", snap)
	}

	p.ContinueUntil(10)
	<-released
}

// TestUnarmedProbeRunsFreely verifies a probe with no target never
// blocks the run.
func TestUnarmedProbeRunsFreely(t *testing.T) {
	p := New("demo.go")
	done := runSteps(p, []int{1, 2, 3})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unarmed run blocked")
	}
	if last := p.Last(); last.Line != 3 {
		t.Errorf("last line = %d, want 3", last.Line)
	}
}

// TestConditionalPause verifies an armed condition skips lines where it
// does not hold.
func TestConditionalPause(t *testing.T) {
	p := New("demo.go")
	if err := p.SetCondition("ln == 3"); err != nil {
		t.Fatalf("SetCondition: %v", err)
	}
	p.ContinueUntil(1)
	runSteps(p, []int{1, 2, 3, 4})

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Line != 3 {
		t.Fatalf("event = %+v, want pause where condition holds", snap)
	}
}

// TestConditionErrorCountsFalse verifies a condition that cannot be
// evaluated never pauses, and the failure is reported once.
func TestConditionErrorCountsFalse(t *testing.T) {
	p := New("demo.go")
	if err := p.SetCondition("missing.field > 0"); err != nil {
		t.Fatalf("SetCondition: %v", err)
	}
	var warnings []string
	p.OnConditionError(func(err error) {
		warnings = append(warnings, err.Error())
	})
	p.ContinueUntil(1)
	done := runSteps(p, []int{1, 2, 3})

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventReturn {
		t.Fatalf("event = %+v, want completion", snap)
	}
	<-done
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one", warnings)
	}
}

// TestSetConditionRejectsBadSource verifies compile errors surface
// immediately instead of at the first step.
func TestSetConditionRejectsBadSource(t *testing.T) {
	p := New("demo.go")
	err := p.SetCondition("ln ==")
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "pause condition") {
		t.Errorf("error = %v, want condition context", err)
	}
}

// TestFail verifies a failure escaping the target surfaces as a single
// error event.
func TestFail(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(100)
	go func() {
		p.Step(1, "demo", nil, nil)
		p.Fail("index out of range", "demo.go:1")
	}()

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventError {
		t.Fatalf("event = %+v, want error event", snap)
	}
	if snap.Error != "index out of range" || snap.Trace == "" {
		t.Errorf("error = %q trace = %q", snap.Error, snap.Trace)
	}
}

// TestWaitTimeout verifies a wait with no event pending reports the
// timeout as a nil snapshot.
func TestWaitTimeout(t *testing.T) {
	p := New("demo.go")
	p.ContinueUntil(5)
	if snap := p.WaitForEvent(50 * time.Millisecond); snap != nil {
		t.Errorf("got %+v, want nil on timeout", snap)
	}
}

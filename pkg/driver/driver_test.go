package driver

import (
	"reflect"
	"testing"
	"time"

	"github.com/flowlens/flowlens/pkg/probe"
	"github.com/flowlens/flowlens/pkg/schema"
)

// TestRunToCompletion verifies a normal return produces one completion
// event and leaves the driver dead with no exception.
func TestRunToCompletion(t *testing.T) {
	p := probe.New("demo.go")
	fn := reflect.ValueOf(func(n int) {
		for i := 0; i < n; i++ {
			p.Step(i+1, "loop", map[string]interface{}{"i": i}, nil)
		}
	})
	d := New(p, fn, []reflect.Value{reflect.ValueOf(3)})

	p.ContinueUntil(100)
	d.Start()

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventReturn {
		t.Fatalf("event = %+v, want completion", snap)
	}
	waitDead(t, d)
	if d.Exception() != nil {
		t.Errorf("exception = %v, want nil", d.Exception())
	}
}

// TestPanicBecomesThreadException verifies a panic escaping the target
// is captured and surfaced as a single error event.
func TestPanicBecomesThreadException(t *testing.T) {
	p := probe.New("demo.go")
	fn := reflect.ValueOf(func() {
		p.Step(1, "boom", nil, nil)
		panic("division by zero")
	})
	d := New(p, fn, nil)

	p.ContinueUntil(100)
	d.Start()

	snap := p.WaitForEvent(time.Second)
	if snap == nil || snap.Event != schema.EventError {
		t.Fatalf("event = %+v, want error event", snap)
	}
	if snap.Error != "division by zero" {
		t.Errorf("error = %q", snap.Error)
	}
	waitDead(t, d)
	exc := d.Exception()
	if exc == nil || exc.Message != "division by zero" || exc.Trace == "" {
		t.Errorf("exception = %+v, want message and traceback", exc)
	}
}

// TestStartIsSingleShot verifies repeated Start calls do not rerun the
// target.
func TestStartIsSingleShot(t *testing.T) {
	p := probe.New("demo.go")
	calls := make(chan struct{}, 4)
	fn := reflect.ValueOf(func() {
		calls <- struct{}{}
	})
	d := New(p, fn, nil)

	p.ContinueUntil(100)
	d.Start()
	d.Start()
	d.Start()

	p.WaitForEvent(time.Second)
	waitDead(t, d)
	if len(calls) != 1 {
		t.Errorf("target ran %d times, want once", len(calls))
	}
}

// TestAliveWhilePaused verifies a run blocked at a pause still reports
// as alive, which is how a stuck wait is told apart from a dead run.
func TestAliveWhilePaused(t *testing.T) {
	p := probe.New("demo.go")
	fn := reflect.ValueOf(func() {
		p.Step(5, "demo", nil, nil)
	})
	d := New(p, fn, nil)

	p.ContinueUntil(5)
	d.Start()

	if snap := p.WaitForEvent(time.Second); snap == nil {
		t.Fatal("expected a pause")
	}
	if !d.Alive() {
		t.Error("driver reported dead while paused")
	}

	p.ContinueUntil(100)
	p.WaitForEvent(time.Second)
	waitDead(t, d)
}

func waitDead(t *testing.T, d *Driver) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for d.Alive() {
		if time.Now().After(deadline) {
			t.Fatal("driver still alive")
		}
		time.Sleep(time.Millisecond)
	}
}

package entry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowlens/flowlens/pkg/probe"
	"github.com/flowlens/flowlens/pkg/schema"
)

const target = `package demo

var calls = 0

func Add(a, b int) int {
	sum := a + b
	calls++
	return sum
}
`

func writeTarget(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "demo.go"), []byte(target), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestResolveAndCall verifies a resolved entry is callable and reports
// its steps through the probe.
func TestResolveAndCall(t *testing.T) {
	dir := writeTarget(t)
	p := probe.New("demo.go")

	e, err := Resolve(dir, schema.EntryPoint{File: "demo.go", Function: "Add"}, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	out := e.Fn.Call(e.BuildArgs(schema.DecodeArgs(`{"args": [2, 3]}`)))
	if len(out) != 1 || out[0].Int() != 5 {
		t.Fatalf("Add(2, 3) = %v, want 5", out)
	}

	last := p.Last()
	if last.Line != 8 || last.Function != "Add" {
		t.Errorf("last step = %s:%d, want Add:8", last.Function, last.Line)
	}
	if last.Locals["sum"] != 5 {
		t.Errorf("locals = %v, want sum 5", last.Locals)
	}
}

// TestResolvePausesAtLine verifies the interpreted run honors the
// rendezvous end to end.
func TestResolvePausesAtLine(t *testing.T) {
	dir := writeTarget(t)
	p := probe.New("demo.go")

	e, err := Resolve(dir, schema.EntryPoint{File: "demo.go", Function: "Add"}, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	p.ContinueUntil(7)
	go e.Fn.Call(e.BuildArgs(schema.DecodeArgs(`{"args": [2, 3]}`)))

	snap := p.WaitForEvent(2 * time.Second)
	if snap == nil || snap.Line != 7 {
		t.Fatalf("event = %+v, want pause at 7", snap)
	}
	if snap.Locals["sum"] != 5 {
		t.Errorf("locals = %v", snap.Locals)
	}
	if snap.Globals["calls"] != 0 {
		t.Errorf("globals = %v, want calls still 0 before the increment", snap.Globals)
	}

	p.ContinueUntil(100)
	if snap = p.WaitForEvent(2 * time.Second); snap == nil || snap.Event != schema.EventReturn {
		t.Fatalf("event = %+v, want completion", snap)
	}
}

// TestBuildArgsKwargs verifies named arguments fill the parameters they
// name.
func TestBuildArgsKwargs(t *testing.T) {
	dir := writeTarget(t)
	p := probe.New("demo.go")

	e, err := Resolve(dir, schema.EntryPoint{File: "demo.go", Function: "Add"}, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	out := e.Fn.Call(e.BuildArgs(schema.DecodeArgs(`{"args": [2], "kwargs": {"b": 40}}`)))
	if out[0].Int() != 42 {
		t.Errorf("Add(2, b: 40) = %d, want 42", out[0].Int())
	}
}

// TestBuildArgsMissingStayZero verifies unbound and undecodable
// arguments degrade to zero values instead of failing.
func TestBuildArgsMissingStayZero(t *testing.T) {
	dir := writeTarget(t)
	p := probe.New("demo.go")

	e, err := Resolve(dir, schema.EntryPoint{File: "demo.go", Function: "Add"}, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	out := e.Fn.Call(e.BuildArgs(schema.DecodeArgs(`{"args": ["not an int"]}`)))
	if out[0].Int() != 0 {
		t.Errorf("Add with undecodable args = %d, want 0", out[0].Int())
	}
}

// TestResolveFunctionMissing verifies the not-found error names the
// available functions.
func TestResolveFunctionMissing(t *testing.T) {
	dir := writeTarget(t)
	p := probe.New("demo.go")

	_, err := Resolve(dir, schema.EntryPoint{File: "demo.go", Function: "Sub"}, p)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("err = %v, want ErrEntryNotFound", err)
	}
}

// TestResolveFileMissing verifies a missing file is a load failure, not
// a lookup failure.
func TestResolveFileMissing(t *testing.T) {
	p := probe.New("gone.go")
	_, err := Resolve(t.TempDir(), schema.EntryPoint{File: "gone.go", Function: "F"}, p)
	if !errors.Is(err, ErrModuleLoadFailed) {
		t.Fatalf("err = %v, want ErrModuleLoadFailed", err)
	}
}

// Package tracer drives one interactive trace of a target function:
// it resolves the entry, owns the probe and driver, streams events to
// the controller, and persists run artifacts.
package tracer

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowlens/flowlens/pkg/driver"
	"github.com/flowlens/flowlens/pkg/entry"
	"github.com/flowlens/flowlens/pkg/probe"
	"github.com/flowlens/flowlens/pkg/schema"
)

// DefaultWaitTimeout bounds how long one cycle waits for an event
// before reporting the run as stuck or dead.
const DefaultWaitTimeout = 30 * time.Second

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// Session is one trace of one entry function. Events go to Out as one
// JSON object per line; human diagnostics go to ErrOut.
type Session struct {
	Request schema.TraceRequest
	Entry   *entry.Entry
	Probe   *probe.Probe
	Driver  *driver.Driver
	Trace   *TraceWriter
	RunID   string
	BaseDir string // <repo>/.flowlens/runs/<run_id>/

	Out         io.Writer
	ErrOut      io.Writer
	WaitTimeout time.Duration

	enc       *json.Encoder
	startedAt time.Time
	events    int
	lastKind  schema.EventKind
	lastLine  int
}

// RunManifest is the run.yaml summary written when a session ends.
type RunManifest struct {
	RunID       string    `yaml:"run_id"`
	EntryFullID string    `yaml:"entry_full_id"`
	RepoRoot    string    `yaml:"repo_root"`
	StartedAt   time.Time `yaml:"started_at"`
	EndedAt     time.Time `yaml:"ended_at"`
	Events      int       `yaml:"events"`
	Outcome     string    `yaml:"outcome"` // completed, failed, quit
}

// NewSession validates req, loads the entry function, and prepares the
// probe, driver, and run artifact directory.
func NewSession(req schema.TraceRequest, out, errOut io.Writer) (*Session, error) {
	problems, err := schema.ValidateRequest(&req)
	if err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid request: %s", strings.Join(problems, "; "))
	}

	point, err := schema.ParseEntryID(req.EntryFullID)
	if err != nil {
		return nil, err
	}

	p := probe.New(point.File)
	p.OnConditionError(func(err error) {
		fmt.Fprintf(errOut, "⊘ pause condition failed, treating as false: %v\n", err)
	})

	e, err := entry.Resolve(req.RepoRoot, point, p)
	if err != nil {
		return nil, err
	}

	d := driver.New(p, e.Fn, e.BuildArgs(schema.DecodeArgs(req.ArgsJSON)))

	runID := GenerateRunID()
	baseDir := filepath.Join(req.RepoRoot, ".flowlens", "runs", runID)
	if err := os.MkdirAll(filepath.Join(baseDir, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	trace, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"), runID)
	if err != nil {
		return nil, fmt.Errorf("create trace writer: %w", err)
	}

	return &Session{
		Request:     req,
		Entry:       e,
		Probe:       p,
		Driver:      d,
		Trace:       trace,
		RunID:       runID,
		BaseDir:     baseDir,
		Out:         out,
		ErrOut:      errOut,
		WaitTimeout: DefaultWaitTimeout,
		enc:         json.NewEncoder(out),
		startedAt:   time.Now(),
	}, nil
}

// ContinueUntil arms the probe for the next pause and starts the run if
// it has not started yet. An optional condition restricts the pause to
// states where it holds.
func (s *Session) ContinueUntil(line int, condition string) error {
	if err := s.Probe.SetCondition(condition); err != nil {
		return err
	}
	s.Probe.ContinueUntil(line)
	s.Driver.Start()
	return nil
}

// WaitForEvent blocks until the current cycle produces an event or the
// session timeout expires. A timeout is itself reported as an event
// whose error text tells a stuck run apart from a dead one.
func (s *Session) WaitForEvent() *schema.Snapshot {
	snap := s.Probe.WaitForEvent(s.WaitTimeout)
	if snap != nil {
		return snap
	}

	timeout := &schema.Snapshot{
		Event: schema.EventTimeout,
		File:  s.Entry.Point.File,
	}
	if s.Driver.Alive() {
		timeout.Error = fmt.Sprintf("no event within %s, target still running", s.WaitTimeout)
	} else if exc := s.Driver.Exception(); exc != nil {
		timeout.Error = fmt.Sprintf("target thread died: %v", exc)
		timeout.Trace = exc.Trace
	} else {
		timeout.Error = "target thread is not alive and produced no event"
	}
	return timeout
}

// Emit writes one event to the controller stream and to the run
// artifacts.
func (s *Session) Emit(snap *schema.Snapshot) error {
	if err := s.enc.Encode(snap); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	s.events++
	s.lastKind = snap.Event
	s.lastLine = snap.Line

	if err := s.Trace.Write(snap); err != nil {
		return err
	}
	path := filepath.Join(s.BaseDir, "snapshots", fmt.Sprintf("event-%04d.json", s.events))
	return SaveSnapshot(snap, path)
}

// Terminal reports whether the last emitted event ended the run.
func (s *Session) Terminal() bool {
	return s.lastKind == schema.EventReturn || s.lastKind == schema.EventError
}

// Close writes the run manifest and releases the trace file.
func (s *Session) Close() error {
	outcome := "quit"
	switch s.lastKind {
	case schema.EventReturn:
		outcome = "completed"
	case schema.EventError:
		outcome = "failed"
	}
	if err := s.writeManifest(outcome); err != nil {
		fmt.Fprintf(s.ErrOut, "✗ write manifest: %v\n", err)
	}
	return s.Trace.Close()
}

// writeManifest writes run.yaml to the run artifacts directory.
func (s *Session) writeManifest(outcome string) error {
	m := RunManifest{
		RunID:       s.RunID,
		EntryFullID: s.Request.EntryFullID,
		RepoRoot:    s.Request.RepoRoot,
		StartedAt:   s.startedAt,
		EndedAt:     time.Now(),
		Events:      s.events,
		Outcome:     outcome,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(s.BaseDir, "run.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// EmitSetupFailure reports a setup problem in the event stream format
// so machine controllers see a parseable failure before exit.
func EmitSetupFailure(w io.Writer, err error) {
	snap := schema.Snapshot{
		Event: schema.EventError,
		Error: err.Error(),
	}
	json.NewEncoder(w).Encode(snap)
}

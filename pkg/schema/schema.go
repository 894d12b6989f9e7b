// Package schema defines the wire types exchanged between the tracer and
// its callers: entry points, trace requests, and snapshot events.
package schema

import (
	"fmt"
	"strings"
)

// EventKind identifies the kind of a trace event.
type EventKind string

const (
	// EventLine is a pause at an executable line of the target file.
	EventLine EventKind = "line"
	// EventReturn reports the target function completing, including
	// completion before the requested line was ever reached.
	EventReturn EventKind = "return"
	// EventError reports a failure escaping the target function.
	EventError EventKind = "error"
	// EventTimeout reports a wait that expired while the target was
	// still running.
	EventTimeout EventKind = "timeout"
)

// EntryPoint names a source file and a function to invoke. Immutable
// once resolved; one entry point per session.
type EntryPoint struct {
	File     string `json:"file"`     // repo-relative path to the source file
	Function string `json:"function"` // top-level function name
}

// FullID renders the canonical "<path>::<function>" form.
func (e EntryPoint) FullID() string {
	return e.File + "::" + e.Function
}

// ParseEntryID splits a "<path>::<function>" identifier.
func ParseEntryID(id string) (EntryPoint, error) {
	file, fn, ok := strings.Cut(id, "::")
	if !ok || file == "" || fn == "" {
		return EntryPoint{}, fmt.Errorf("invalid entry id %q: expected <path>::<function>", id)
	}
	return EntryPoint{File: strings.TrimPrefix(file, "/"), Function: fn}, nil
}

// TraceRequest is the full request for one tracer session.
type TraceRequest struct {
	RepoRoot    string `json:"repo_root"`
	EntryFullID string `json:"entry_full_id"`
	ArgsJSON    string `json:"args_json,omitempty"`
	StopLine    int    `json:"stop_line"`
}

// Snapshot is the captured execution state produced at a pause or at a
// terminal transition. Field names mirror the event stream format.
type Snapshot struct {
	Event    EventKind              `json:"event"`
	File     string                 `json:"filename"`
	Function string                 `json:"function"`
	Line     int                    `json:"line"`
	Locals   map[string]interface{} `json:"locals,omitempty"`
	Globals  map[string]interface{} `json:"globals,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Trace    string                 `json:"traceback,omitempty"`
}

// ThreadException is a terminal failure captured on the driver side,
// delivered to the controller at most once.
type ThreadException struct {
	Message string `json:"error"`
	Trace   string `json:"traceback,omitempty"`
}

func (e *ThreadException) Error() string {
	return e.Message
}

package tracer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/flowlens/flowlens/pkg/schema"
)

// TraceEvent is one JSONL record in the run's trace file.
type TraceEvent struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"run_id"`
	Snapshot  *schema.Snapshot `json:"snapshot"`
}

// TraceWriter writes snapshot events to a JSONL trace file.
type TraceWriter struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file.
func NewTraceWriter(path, runID string) (*TraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{
		runID:  runID,
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Write appends a snapshot as a JSONL event and flushes to disk.
func (tw *TraceWriter) Write(snap *schema.Snapshot) error {
	event := TraceEvent{
		Type:      "trace_event",
		Timestamp: time.Now(),
		RunID:     tw.runID,
		Snapshot:  snap,
	}
	if err := tw.enc.Encode(event); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	// Flush and sync at event boundaries
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}

// SaveSnapshot persists one snapshot to a JSON file.
func SaveSnapshot(snap *schema.Snapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the JSONL file written under the artifacts directory.
const EventsFile = "events.jsonl"

// Emitter appends events to <dir>/events.jsonl. A nil or disabled Emitter
// drops every event, so callers never need to check.
type Emitter struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	now     func() time.Time
	errOut  io.Writer
}

// NewEmitter returns an Emitter writing under dir when enabled is true.
func NewEmitter(enabled bool, dir string) *Emitter {
	if dir == "" {
		dir = ".agent"
	}
	return &Emitter{dir: dir, enabled: enabled, now: time.Now, errOut: os.Stderr}
}

// Enabled reports whether events are written.
func (e *Emitter) Enabled() bool { return e != nil && e.enabled }

// Path returns the events file location.
func (e *Emitter) Path() string {
	if e == nil {
		return ""
	}
	return filepath.Join(e.dir, EventsFile)
}

// Emit writes a single JSON line. It augments fields with RFC3339Nano time,
// the event name and, when ctx carries one, the turn id.
func (e *Emitter) Emit(ctx context.Context, name string, fields map[string]any) {
	if !e.Enabled() {
		return
	}

	// Make a shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = e.now().UTC().Format(time.RFC3339Nano)
	m["event"] = name
	if id, ok := TurnIDFromContext(ctx); ok {
		m["turn_id"] = id
	}

	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintf(e.errOut, "telemetry: marshal: %v\n", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		fmt.Fprintf(e.errOut, "telemetry: mkdir %s: %v\n", e.dir, err)
		return
	}

	path := e.Path()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(e.errOut, "telemetry: open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		fmt.Fprintf(e.errOut, "telemetry: write %s: %v\n", path, err)
	}
}

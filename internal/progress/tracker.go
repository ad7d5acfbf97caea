// Package progress tracks how many sections of a drafting run are finished.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type State struct {
	Status    Status    `json:"status"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink receives every state change.
type Sink interface {
	Write(State) error
}

// Tracker holds the state of the current run. Writers are serialized; Read
// never blocks.
type Tracker struct {
	state atomic.Pointer[State]
	mu    sync.Mutex
	sink  Sink
	now   func() time.Time
}

func NewTracker(sink Sink) *Tracker {
	t := &Tracker{sink: sink, now: time.Now}
	t.state.Store(&State{Status: StatusIdle, UpdatedAt: t.now().UTC()})
	return t
}

func (t *Tracker) Read() State {
	return *t.state.Load()
}

func (t *Tracker) Reset(total int) {
	if total < 0 {
		total = 0
	}
	t.update(func(State) State {
		return State{Status: StatusRunning, Total: total}
	})
}

// Advance counts one more finished section, never beyond Total.
func (t *Tracker) Advance() {
	t.update(func(s State) State {
		if s.Completed < s.Total {
			s.Completed++
		}
		return s
	})
}

func (t *Tracker) MarkDone() {
	t.update(func(s State) State {
		return State{Status: StatusDone, Completed: s.Total, Total: s.Total}
	})
}

// Fail ends the run early, keeping the counts reached so far.
func (t *Tracker) Fail() {
	t.update(func(s State) State {
		s.Status = StatusFailed
		return s
	})
}

func (t *Tracker) update(fn func(State) State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := fn(*t.state.Load())
	next.UpdatedAt = t.now().UTC()
	t.state.Store(&next)

	if t.sink != nil {
		if err := t.sink.Write(next); err != nil {
			slog.Warn("failed to persist progress", "error", err)
		}
	}
}

// FileSink mirrors progress into a JSON file so another process can poll it.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Write(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// ReadFile loads a persisted state. A missing file reads as idle.
func ReadFile(_ context.Context, path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{Status: StatusIdle}, nil
	}
	if err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode progress file: %w", err)
	}
	return s, nil
}

// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Operation classifies a single filesystem change.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileEvent is one observed change to path.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// debouncer coalesces rapid events for the same path within window into a
// single event, per the rules: CREATE+MODIFY=CREATE, CREATE+DELETE=nothing,
// MODIFY+DELETE=DELETE, DELETE+CREATE=MODIFY. A timer reset by every new
// event implements the Pending state's "more events -> Pending (timer
// reset)" transition; the timer firing is the Pending->Reindexing edge.
type debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 16),
	}
}

// Add records event, coalescing it with any pending event for the same
// path, and (re)starts the flush timer.
func (d *debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		coalesced := coalesce(existing.firstOp, event)
		if coalesced == nil {
			delete(d.pending, event.Path)
		} else {
			existing.event = *coalesced
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	d.scheduleFlush()
}

// coalesce merges a new event into a pending one that started with firstOp.
// Returns nil if the two cancel out (a file created and deleted within the
// same debounce window never really existed as far as the index cares).
func coalesce(firstOp Operation, new FileEvent) *FileEvent {
	switch firstOp {
	case OpCreate:
		switch new.Operation {
		case OpModify:
			created := new
			created.Operation = OpCreate
			return &created
		case OpDelete:
			return nil
		default:
			return &new
		}
	case OpModify:
		return &new
	case OpDelete:
		if new.Operation == OpCreate {
			replaced := new
			replaced.Operation = OpModify
			return &replaced
		}
		return &new
	default:
		return &new
	}
}

func (d *debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- events:
	default:
		slog.Default().Warn("watch.debouncer.output_full", "batch_size", len(events))
	}
}

// Output is the channel of coalesced event batches, one per debounce window.
func (d *debouncer) Output() <-chan []FileEvent { return d.output }

// Stop halts the debouncer and closes Output. Safe to call multiple times.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

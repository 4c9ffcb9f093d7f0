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

// Package watch keeps the index in sync with the filesystem after startup:
// a Watcher observes source files, debounces bursts of change, and hands
// coalesced batches to a caller-supplied Reindexer. It never imports
// pkg/pipeline itself, so it stays testable and reusable independent of how
// a caller wires indexing — unlike pkg/sync, which owns a *pipeline.Pipeline
// directly because it drives a single one-shot startup reconciliation
// rather than an indefinitely running loop.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Mode selects how the Watcher observes changes. The two modes are
// mutually exclusive: a Watcher runs in exactly one.
type Mode int

const (
	// ModeEvent uses OS filesystem notifications (fsnotify), debounced.
	ModeEvent Mode = iota
	// ModePolling periodically re-scans the tree for mtime/size changes.
	ModePolling
)

// State is the Watcher's externally observable phase, for introspection
// and tests. It is not used to gate behavior: a single consumer goroutine
// draining the debouncer's output channel naturally serializes batches, so
// an event arriving during Reindexing simply waits in the channel for the
// next Pending->Reindexing transition once the current one finishes.
type State int

const (
	StateIdle State = iota
	StatePending
	StateReindexing
)

// Reindexer is invoked with one coalesced batch of events per debounce
// window (or polling tick). Callers typically wire this to
// pipeline.Pipeline.IndexFile for create/modify and to
// Store.RemoveFile/Search.RemoveByFile for delete.
type Reindexer func(ctx context.Context, events []FileEvent) error

// Options configures a Watcher.
type Options struct {
	Root             string
	Mode             Mode
	DebounceInterval time.Duration
	PollInterval     time.Duration
	ExcludeGlobs     []string
}

// DefaultOptions returns Options with the spec's defaults: event mode,
// a 100ms debounce window, and a 2s poll interval for ModePolling.
func DefaultOptions(root string) Options {
	return Options{
		Root:             root,
		Mode:             ModeEvent,
		DebounceInterval: 100 * time.Millisecond,
		PollInterval:     2 * time.Second,
	}
}

// Watcher observes Root for changes and feeds debounced batches to reindex.
type Watcher struct {
	opts      Options
	reindex   Reindexer
	logger    *slog.Logger
	debouncer *debouncer

	mu    sync.Mutex
	state State

	stopCh chan struct{}
	doneCh chan struct{}
	fsw    *fsnotify.Watcher
}

// New builds a Watcher. reindex is called from a single goroutine, so it
// need not be concurrency-safe itself.
func New(opts Options, reindex Reindexer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = 100 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Watcher{
		opts:      opts,
		reindex:   reindex,
		logger:    logger,
		debouncer: newDebouncer(opts.DebounceInterval),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// State reports the Watcher's current phase.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start begins observing Root in the configured Mode and blocks until ctx
// is canceled or Stop is called. The consumer goroutine that drains
// debounced batches runs for the lifetime of Start.
func (w *Watcher) Start(ctx context.Context) error {
	go w.consume(ctx)

	switch w.opts.Mode {
	case ModePolling:
		return w.runPolling(ctx)
	default:
		return w.runEvents(ctx)
	}
}

// Stop cooperatively halts the Watcher: it stops accepting new events,
// lets any in-flight reindex finish, and returns once the consumer
// goroutine has exited.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	w.debouncer.Stop()
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	<-w.doneCh
}

// consume serially drains debounced batches and invokes reindex,
// transitioning Idle->Reindexing->Idle around each one. Because this is
// the only goroutine that calls reindex, a batch arriving mid-reindex
// simply waits on the channel — the "event during Reindexing queues one
// further Pending transition" rule falls out of that serialization for
// free, with no extra state bookkeeping required.
func (w *Watcher) consume(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.setState(StateReindexing)
			if err := w.reindex(ctx, batch); err != nil {
				w.logger.Warn("watch.reindex.error", "batch_size", len(batch), "err", err)
			}
			w.setState(StateIdle)
		}
	}
}

func (w *Watcher) shouldExclude(path string) bool {
	return matchesAnyGlob(path, w.opts.ExcludeGlobs)
}

// matchesAnyGlob reports whether path (or its base name) matches any of
// globs. path.Match has no "**" support; a pattern ending in "/**" is
// treated as a directory-prefix match instead, which covers the common
// "exclude everything under this directory" case without it.
func matchesAnyGlob(path string, globs []string) bool {
	base := filepath.Base(path)
	for _, g := range globs {
		if strings.HasSuffix(g, "/**") {
			prefix := strings.TrimSuffix(g, "/**")
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(g, path); ok {
			return true
		}
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	return false
}

// runEvents drives ModeEvent: fsnotify watches Root recursively, filtered
// events feed the debouncer.
func (w *Watcher) runEvents(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("watch.fsnotify.unavailable_falling_back_to_polling", "err", err)
		return w.runPolling(ctx)
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := addRecursive(fsw, w.opts.Root); err != nil {
		return fmt.Errorf("watch: add recursive watches under %s: %w", w.opts.Root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch.fsnotify.error", "err", err)
		}
	}
}

func (w *Watcher) handleFsnotifyEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Chmod != 0 && ev.Op == fsnotify.Chmod {
		return
	}
	if w.shouldExclude(ev.Name) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = addRecursive(fsw, ev.Name)
			return
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		op = OpDelete
	default:
		return
	}

	w.setState(StatePending)
	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case "node_modules", ".git", "dist", "build":
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// runPolling drives ModePolling: a ticker re-scans Root, diffing
// (mtime, size) snapshots to synthesize create/modify/delete events.
func (w *Watcher) runPolling(ctx context.Context) error {
	state, err := w.scan()
	if err != nil {
		return fmt.Errorf("watch: initial scan of %s: %w", w.opts.Root, err)
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			next, err := w.scan()
			if err != nil {
				w.logger.Warn("watch.polling.scan_error", "err", err)
				continue
			}
			w.detectChanges(state, next)
			state = next
		}
	}
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) scan() (map[string]fileSnapshot, error) {
	out := make(map[string]fileSnapshot)
	err := filepath.WalkDir(w.opts.Root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "node_modules", ".git", "dist", "build":
				return filepath.SkipDir
			}
			return nil
		}
		if w.shouldExclude(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out[p] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (w *Watcher) detectChanges(prev, next map[string]fileSnapshot) {
	now := time.Now()
	for p, snap := range next {
		if old, ok := prev[p]; !ok {
			w.setState(StatePending)
			w.debouncer.Add(FileEvent{Path: p, Operation: OpCreate, Timestamp: now})
		} else if !old.modTime.Equal(snap.modTime) || old.size != snap.size {
			w.setState(StatePending)
			w.debouncer.Add(FileEvent{Path: p, Operation: OpModify, Timestamp: now})
		}
	}
	for p := range prev {
		if _, ok := next[p]; !ok {
			w.setState(StatePending)
			w.debouncer.Add(FileEvent{Path: p, Operation: OpDelete, Timestamp: now})
		}
	}
}

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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestCoalesceCreateThenModifyStaysCreate(t *testing.T) {
	got := coalesce(OpCreate, FileEvent{Path: "a.go", Operation: OpModify})
	if got == nil || got.Operation != OpCreate {
		t.Fatalf("expected CREATE+MODIFY=CREATE, got %+v", got)
	}
}

func TestCoalesceCreateThenDeleteCancelsOut(t *testing.T) {
	got := coalesce(OpCreate, FileEvent{Path: "a.go", Operation: OpDelete})
	if got != nil {
		t.Fatalf("expected CREATE+DELETE=nothing, got %+v", got)
	}
}

func TestCoalesceModifyThenDeleteIsDelete(t *testing.T) {
	got := coalesce(OpModify, FileEvent{Path: "a.go", Operation: OpDelete})
	if got == nil || got.Operation != OpDelete {
		t.Fatalf("expected MODIFY+DELETE=DELETE, got %+v", got)
	}
}

func TestCoalesceDeleteThenCreateIsModify(t *testing.T) {
	got := coalesce(OpDelete, FileEvent{Path: "a.go", Operation: OpCreate})
	if got == nil || got.Operation != OpModify {
		t.Fatalf("expected DELETE+CREATE=MODIFY, got %+v", got)
	}
}

func TestDebouncerFlushesOneCoalescedBatch(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Operation: OpCreate})
	d.Add(FileEvent{Path: "a.go", Operation: OpModify})
	d.Add(FileEvent{Path: "b.go", Operation: OpModify})

	select {
	case batch := <-d.Output():
		if len(batch) != 2 {
			t.Fatalf("expected 2 coalesced events, got %d: %+v", len(batch), batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestDebouncerResetsTimerOnNewEvent(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Operation: OpModify})
	time.Sleep(30 * time.Millisecond)
	d.Add(FileEvent{Path: "a.go", Operation: OpModify})

	select {
	case <-d.Output():
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case batch := <-d.Output():
		if len(batch) != 1 {
			t.Fatalf("expected exactly one flush of one event, got %+v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delayed flush")
	}
}

func TestMatchesAnyGlobSimplePattern(t *testing.T) {
	if !matchesAnyGlob("src/widget.test.ts", []string{"*.test.ts"}) {
		t.Errorf("expected *.test.ts to match widget.test.ts by basename")
	}
	if matchesAnyGlob("src/widget.ts", []string{"*.test.ts"}) {
		t.Errorf("did not expect widget.ts to match *.test.ts")
	}
}

func TestMatchesAnyGlobDirectoryPrefix(t *testing.T) {
	if !matchesAnyGlob("vendor/foo/bar.go", []string{"vendor/**"}) {
		t.Errorf("expected vendor/** to match a nested vendor path")
	}
	if matchesAnyGlob("internal/vendor.go", []string{"vendor/**"}) {
		t.Errorf("did not expect vendor/** to match unrelated path")
	}
}

func TestWatcherPollingModeDetectsCreateModifyDelete(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a.go")
	if err := os.WriteFile(filePath, []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts := DefaultOptions(root)
	opts.Mode = ModePolling
	opts.PollInterval = 30 * time.Millisecond
	opts.DebounceInterval = 10 * time.Millisecond

	var mu sync.Mutex
	var seen []FileEvent
	batches := make(chan struct{}, 8)
	reindex := func(ctx context.Context, events []FileEvent) error {
		mu.Lock()
		seen = append(seen, events...)
		mu.Unlock()
		batches <- struct{}{}
		return nil
	}

	w := New(opts, reindex, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)

	// Initial scan establishes the baseline; modify the file so the next
	// poll tick observes a changed mtime/size.
	time.Sleep(50 * time.Millisecond)
	future := time.Now().Add(time.Second)
	if err := os.WriteFile(filePath, []byte("package a\n\nfunc f() {}\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := os.Chtimes(filePath, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case <-batches:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for polling watcher to detect modification")
	}

	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, e := range seen {
		if e.Path == filePath && e.Operation == OpModify {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a MODIFY event for %s, got %+v", filePath, seen)
	}
}

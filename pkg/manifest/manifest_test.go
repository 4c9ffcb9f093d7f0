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

package manifest

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingManifestIsEmpty(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Empty() {
		t.Fatal("expected empty manifest for missing file")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	m.Update(map[string]FileState{"a.go": {ModTime: now, Size: 42}}, nil)
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load reloaded: %v", err)
	}
	got, ok := reloaded.Files["a.go"]
	if !ok {
		t.Fatal("expected a.go in reloaded manifest")
	}
	if got.Size != 42 || !got.ModTime.Equal(now) {
		t.Fatalf("reloaded state = %+v, want size=42 modTime=%v", got, now)
	}
}

func TestDiffDetectsAddedStaleDeleted(t *testing.T) {
	now := time.Now()
	m := &Manifest{Files: map[string]FileState{
		"unchanged.go": {ModTime: now, Size: 10},
		"changed.go":   {ModTime: now, Size: 10},
		"removed.go":   {ModTime: now, Size: 10},
	}}

	current := map[string]FileState{
		"unchanged.go": {ModTime: now, Size: 10},
		"changed.go":   {ModTime: now.Add(time.Second), Size: 20},
		"new.go":       {ModTime: now, Size: 5},
	}

	d := m.Diff(current)

	if len(d.Added) != 1 || d.Added[0] != "new.go" {
		t.Fatalf("Added = %v", d.Added)
	}
	if len(d.Stale) != 1 || d.Stale[0] != "changed.go" {
		t.Fatalf("Stale = %v", d.Stale)
	}
	if len(d.Deleted) != 1 || d.Deleted[0] != "removed.go" {
		t.Fatalf("Deleted = %v", d.Deleted)
	}
}

func TestUpdateRemovesDeletedEntries(t *testing.T) {
	m := &Manifest{Files: map[string]FileState{"gone.go": {}}}
	m.Update(nil, []string{"gone.go"})
	if _, ok := m.Files["gone.go"]; ok {
		t.Fatal("expected gone.go to be removed")
	}
}

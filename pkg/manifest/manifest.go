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

// Package manifest tracks the (mtime, size) of every indexed file so the
// sync engine can detect added, modified, and deleted files without
// re-parsing unchanged ones on every startup.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileState is the last-known state of a single indexed file.
type FileState struct {
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// Manifest is the persisted file -> FileState map, keyed by
// project-relative, forward-slash path.
type Manifest struct {
	path  string
	Files map[string]FileState `json:"files"`
}

// Diff is the result of comparing a Manifest against the files currently
// present on disk.
type Diff struct {
	Added   []string
	Stale   []string
	Deleted []string
}

// Load reads the manifest at path. A missing file is not an error: it
// yields an empty manifest, the state of a brand-new project.
func Load(path string) (*Manifest, error) {
	m := &Manifest{path: path, Files: make(map[string]FileState)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileState)
	}
	m.path = path
	return m, nil
}

// Save writes the manifest atomically: write to a temp file in the same
// directory, then rename over the real path, so a crash mid-write never
// leaves a truncated manifest behind.
func (m *Manifest) Save() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("manifest: create dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write temp: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("manifest: rename: %w", err)
	}
	return nil
}

// Diff compares the manifest's recorded state against current, the
// (mtime, size) observed for every file presently on disk within the
// project's indexed packages. A file is Stale when its size or mtime
// differs from what the manifest recorded; Added when the manifest has
// no record of it; Deleted when the manifest has a record but current
// does not.
func (m *Manifest) Diff(current map[string]FileState) Diff {
	var d Diff

	for path, state := range current {
		recorded, ok := m.Files[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case !recorded.ModTime.Equal(state.ModTime) || recorded.Size != state.Size:
			d.Stale = append(d.Stale, path)
		}
	}
	for path := range m.Files {
		if _, ok := current[path]; !ok {
			d.Deleted = append(d.Deleted, path)
		}
	}

	return d
}

// Update records the given file states, overwriting any prior entries,
// and removes entries for deleted paths. It does not write to disk; call
// Save afterward.
func (m *Manifest) Update(states map[string]FileState, deleted []string) {
	for path, state := range states {
		m.Files[path] = state
	}
	for _, path := range deleted {
		delete(m.Files, path)
	}
}

// Empty reports whether the manifest has no recorded files, the signal
// the sync engine uses to decide a full index is needed rather than an
// incremental one.
func (m *Manifest) Empty() bool {
	return len(m.Files) == 0
}

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

package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SpawnLock provides cross-process exclusion over one project's cache
// directory, so that two `cie watch`/`cie index` processes for the same
// project never write the graph store concurrently. Backed by
// gofrs/flock, which works uniformly across Unix and Windows.
type SpawnLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewSpawnLock returns a lock guarding <cacheDir>/server.lock.
func NewSpawnLock(cacheDir string) *SpawnLock {
	path := filepath.Join(cacheDir, "server.lock")
	return &SpawnLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. acquired is
// false when another process already holds it.
func (l *SpawnLock) TryLock() (acquired bool, err error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("bootstrap: create lock dir: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("bootstrap: acquire lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *SpawnLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("bootstrap: release lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file's path, used in the "already running" error
// message shown to the user.
func (l *SpawnLock) Path() string {
	return l.path
}

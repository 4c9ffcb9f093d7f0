// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bootstrap opens a project's on-disk state into a running
// Session: it loads internal/config, takes the spawn-exclusion lock over
// the project's cache directory, opens the graph Store (creating its
// schema on first use), and assembles the SearchBackend, EmbeddingCache,
// ProjectRegistry, IndexPipeline, SyncEngine, and Watcher on top of it.
//
// # Typical Workflow
//
//	sess, err := bootstrap.Open(projectRoot, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if _, err := sess.Sync(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := sess.StartWatching(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Idempotency
//
// Open is idempotent with respect to the on-disk project: calling it
// again after Close is always safe. Only one live Session may hold a
// given project's SpawnLock at a time; a second concurrent Open fails
// with a database error naming the lock file.
//
// # Storage
//
// internal/config's storage.type selects the backend: "sqlite" opens a
// pkg/store.SQLiteStore; "memgraph" is accepted by config validation for
// forward compatibility but rejected here until a Memgraph-backed
// pkg/store.Store exists.
package bootstrap

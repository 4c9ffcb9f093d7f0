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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no cgo

	"github.com/kraklabs/cie/pkg/graph"
)

// SQLiteStore is the embedded graph store. A single *sql.DB is shared by
// all callers; writers take the exclusive side of mu, readers the shared
// side, matching the single-writer/many-reader discipline the watcher and
// query engine are built around.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		name       TEXT NOT NULL,
		package    TEXT,
		module     TEXT,
		file_path  TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL,
		exported   INTEGER NOT NULL DEFAULT 0,
		properties TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_file_path ON nodes(file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name)`,
	`CREATE TABLE IF NOT EXISTS edges (
		source           TEXT NOT NULL,
		target           TEXT NOT NULL,
		type             TEXT NOT NULL,
		call_count       INTEGER NOT NULL DEFAULT 0,
		is_type_only     INTEGER NOT NULL DEFAULT 0,
		imported_symbols TEXT,
		context          TEXT,
		PRIMARY KEY (source, target, type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source, type)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target, type)`,
}

// OpenSQLite opens (creating if absent) the graph database at path and
// brings its schema up to date. An empty path opens a private in-memory
// database, used by tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if path != "" {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: enable WAL: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragma foreign_keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}

	var raw sql.NullString
	err = tx.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES ('schema_version', ?)`,
			fmt.Sprint(CurrentSchemaVersion)); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("store: read schema_version: %w", err)
	default:
		var dbVersion int
		fmt.Sscanf(raw.String, "%d", &dbVersion)
		if dbVersion > CurrentSchemaVersion {
			return &ErrSchemaTooNew{DBVersion: dbVersion, CodeVersion: CurrentSchemaVersion}
		}
	}

	return tx.Commit()
}

// SchemaVersion implements Store.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if err != nil {
		return 0, err
	}
	var v int
	fmt.Sscanf(raw, "%d", &v)
	return v, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// RemoveFile implements Store.
func (s *SQLiteStore) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM edges WHERE source IN (SELECT id FROM nodes WHERE file_path = ?)
		                     OR target IN (SELECT id FROM nodes WHERE file_path = ?)`,
		path, path); err != nil {
		return fmt.Errorf("store: remove edges for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("store: remove nodes for %s: %w", path, err)
	}

	return tx.Commit()
}

// WriteNodes implements Store.
func (s *SQLiteStore) WriteNodes(ctx context.Context, nodes []*graph.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes(id, type, name, package, module, file_path, start_line, end_line, exported, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, name = excluded.name, package = excluded.package,
			module = excluded.module, file_path = excluded.file_path,
			start_line = excluded.start_line, end_line = excluded.end_line,
			exported = excluded.exported, properties = excluded.properties`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range nodes {
		var props []byte
		if len(n.Properties) > 0 {
			props, err = json.Marshal(n.Properties)
			if err != nil {
				return fmt.Errorf("store: marshal properties for %s: %w", n.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, n.ID, string(n.Type), n.Name, n.Package, n.Module,
			n.FilePath, n.StartLine, n.EndLine, boolToInt(n.Exported), string(props)); err != nil {
			return fmt.Errorf("store: write node %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// WriteEdges implements Store. Duplicate (source, target, type) rows are
// ignored except for CALLS, where CallCount is summed across occurrences
// seen in the same file during the same ingestion pass.
func (s *SQLiteStore) WriteEdges(ctx context.Context, edges []*graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO edges(source, target, type, call_count, is_type_only, imported_symbols, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, target, type) DO NOTHING`)
	if err != nil {
		return err
	}
	defer insert.Close()

	bumpCalls, err := tx.PrepareContext(ctx, `
		UPDATE edges SET call_count = call_count + ?
		WHERE source = ? AND target = ? AND type = ?`)
	if err != nil {
		return err
	}
	defer bumpCalls.Close()

	for _, e := range edges {
		var symbols []byte
		if len(e.ImportedSymbols) > 0 {
			symbols, err = json.Marshal(e.ImportedSymbols)
			if err != nil {
				return fmt.Errorf("store: marshal imported symbols: %w", err)
			}
		}

		res, err := insert.ExecContext(ctx, e.Source, e.Target, string(e.Type), e.CallCount,
			boolToInt(e.IsTypeOnly), string(symbols), e.Context)
		if err != nil {
			return fmt.Errorf("store: write edge %s->%s: %w", e.Source, e.Target, err)
		}

		if e.Type == graph.EdgeCalls {
			n, _ := res.RowsAffected()
			if n == 0 {
				count := e.CallCount
				if count == 0 {
					count = 1
				}
				if _, err := bumpCalls.ExecContext(ctx, count, e.Source, e.Target, string(e.Type)); err != nil {
					return fmt.Errorf("store: bump call count %s->%s: %w", e.Source, e.Target, err)
				}
			}
		}
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

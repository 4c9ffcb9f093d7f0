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
	"strings"

	"github.com/kraklabs/cie/pkg/graph"
)

// QueryNodes implements Store.
func (s *SQLiteStore) QueryNodes(ctx context.Context, filter NodeFilter) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.FilePath != "" {
		where = append(where, "file_path = ?")
		args = append(args, filter.FilePath)
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.NamePattern != "" {
		where = append(where, "name LIKE ?")
		args = append(args, filter.NamePattern)
	}

	q := "SELECT id, type, name, package, module, file_path, start_line, end_line, exported, properties FROM nodes"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// GetNode implements Store.
func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, package, module, file_path, start_line, end_line, exported, properties
		FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ResolveSymbol implements Store. It matches nodes in filePath whose
// qualified name equals symbol, or whose qualified name ends in ".symbol"
// (so "bar" resolves a method "Foo.bar" when the caller doesn't know the
// owning type).
func (s *SQLiteStore) ResolveSymbol(ctx context.Context, filePath, symbol string) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := filePath + ":" + symbol
	suffix := "%." + symbol

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, package, module, file_path, start_line, end_line, exported, properties
		FROM nodes
		WHERE file_path = ? AND (id = ? OR id LIKE ?)`, filePath, id, filePath+":"+suffix)
	if err != nil {
		return nil, fmt.Errorf("store: resolve symbol %s in %s: %w", symbol, filePath, err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// BatchGetDocMeta implements Store.
func (s *SQLiteStore) BatchGetDocMeta(ctx context.Context, ids []string) (map[string]DocMeta, error) {
	if len(ids) == 0 {
		return map[string]DocMeta{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, properties, name FROM nodes WHERE id IN (%s)`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("store: batch doc meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]DocMeta, len(ids))
	for rows.Next() {
		var id, name string
		var rawProps sql.NullString
		if err := rows.Scan(&id, &rawProps, &name); err != nil {
			return nil, err
		}
		meta := DocMeta{Snippet: name}
		if rawProps.Valid && rawProps.String != "" {
			var props map[string]any
			if err := json.Unmarshal([]byte(rawProps.String), &props); err == nil {
				if h, ok := props["contentHash"].(string); ok {
					meta.ContentHash = h
				}
				if sn, ok := props["snippet"].(string); ok && sn != "" {
					meta.Snippet = sn
				}
			}
		}
		out[id] = meta
	}
	return out, rows.Err()
}

func scanNodes(rows *sql.Rows) ([]*graph.Node, error) {
	var out []*graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (*graph.Node, error) {
	var n graph.Node
	var pkg, module sql.NullString
	var exported int
	var rawProps sql.NullString

	if err := r.Scan(&n.ID, &n.Type, &n.Name, &pkg, &module, &n.FilePath,
		&n.StartLine, &n.EndLine, &exported, &rawProps); err != nil {
		return nil, err
	}

	n.Package = pkg.String
	n.Module = module.String
	n.Exported = exported != 0
	if rawProps.Valid && rawProps.String != "" {
		if err := json.Unmarshal([]byte(rawProps.String), &n.Properties); err != nil {
			return nil, fmt.Errorf("store: unmarshal properties for %s: %w", n.ID, err)
		}
	}
	return &n, nil
}

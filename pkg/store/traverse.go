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

// OutgoingReachability implements Store using a recursive CTE that walks
// edges.source -> edges.target up to maxDepth hops.
func (s *SQLiteStore) OutgoingReachability(ctx context.Context, src string, edgeTypes EdgeSet, maxDepth int) (*Reachability, error) {
	return s.reachability(ctx, src, edgeTypes, maxDepth, false)
}

// IncomingReachability implements Store using the same recursive CTE with
// the join direction flipped: edges.target -> edges.source.
func (s *SQLiteStore) IncomingReachability(ctx context.Context, dst string, edgeTypes EdgeSet, maxDepth int) (*Reachability, error) {
	return s.reachability(ctx, dst, edgeTypes, maxDepth, true)
}

func (s *SQLiteStore) reachability(ctx context.Context, start string, edgeTypes EdgeSet, maxDepth int, reverse bool) (*Reachability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeClause, typeArgs := edgeTypeClause("e", edgeTypes)

	from, to := "source", "target"
	if reverse {
		from, to = "target", "source"
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE reach(id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT e.%s, r.depth + 1
			FROM reach r
			JOIN edges e ON e.%s = r.id
			WHERE r.depth < ? %s
		)
		SELECT DISTINCT id FROM reach`, to, from, typeClause)

	args := append([]any{start, maxDepth}, typeArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: reachability: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	nodes, err := s.nodesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	edges, err := s.edgesAmong(ctx, ids, edgeTypes)
	if err != nil {
		return nil, err
	}

	return &Reachability{Nodes: nodes, Edges: edges}, nil
}

// ShortestPath implements Store. It loads the full edge set for the
// requested types once and runs a bidirectional meet-in-the-middle BFS in
// Go, which is both simpler and faster than expressing path reconstruction
// as SQL for typical per-query edge-set sizes. If no path is found in the
// requested direction and src != dst, it retries with src and dst swapped
// so that callers don't need to know which way a relation points; that
// path is returned in its stored edge direction (dst..src).
func (s *SQLiteStore) ShortestPath(ctx context.Context, src, dst string, edgeTypes EdgeSet, maxDepth int) (*PathResult, error) {
	s.mu.RLock()
	fwd, rev, err := s.loadAdjacency(ctx, edgeTypes)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if p := bidirectionalBFS(fwd, rev, src, dst, maxDepth); p != nil {
		return s.materializePath(ctx, p, fwd)
	}
	if src != dst {
		if p := bidirectionalBFS(fwd, rev, dst, src, maxDepth); p != nil {
			return s.materializePath(ctx, p, fwd)
		}
	}
	return nil, nil
}

type adjacency map[string][]edgeRef

type edgeRef struct {
	to   string
	edge *graph.Edge
}

func (s *SQLiteStore) loadAdjacency(ctx context.Context, edgeTypes EdgeSet) (fwd, rev adjacency, err error) {
	typeClause, typeArgs := edgeTypeClause("", edgeTypes)
	query := fmt.Sprintf(`
		SELECT source, target, type, call_count, is_type_only, imported_symbols, context
		FROM edges WHERE 1=1 %s`, typeClause)

	rows, err := s.db.QueryContext(ctx, query, typeArgs...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: load adjacency: %w", err)
	}
	defer rows.Close()

	fwd, rev = adjacency{}, adjacency{}
	for rows.Next() {
		e, scanErr := scanEdgeRow(rows)
		if scanErr != nil {
			return nil, nil, scanErr
		}
		fwd[e.Source] = append(fwd[e.Source], edgeRef{to: e.Target, edge: e})
		rev[e.Target] = append(rev[e.Target], edgeRef{to: e.Source, edge: e})
	}
	return fwd, rev, rows.Err()
}

// bidirectionalBFS expands frontiers from both src and dst simultaneously,
// alternating sides, stopping as soon as the two frontiers meet. Returns
// the node id sequence from src to dst, or nil if no path exists within
// maxDepth total hops.
func bidirectionalBFS(fwd, rev adjacency, src, dst string, maxDepth int) []string {
	if src == dst {
		return []string{src}
	}

	const noParent = ""
	parentFwd := map[string]string{src: noParent}
	parentRev := map[string]string{dst: noParent}
	haveFwd := map[string]bool{src: true}
	haveRev := map[string]bool{dst: true}
	frontierFwd := []string{src}
	frontierRev := []string{dst}

	meet := ""
	for depth := 0; depth < maxDepth && meet == ""; depth++ {
		if len(frontierFwd) == 0 && len(frontierRev) == 0 {
			break
		}
		if len(frontierFwd) <= len(frontierRev) {
			var next []string
			for _, id := range frontierFwd {
				for _, ref := range fwd[id] {
					if haveFwd[ref.to] {
						continue
					}
					parentFwd[ref.to] = id
					haveFwd[ref.to] = true
					next = append(next, ref.to)
					if haveRev[ref.to] {
						meet = ref.to
						break
					}
				}
				if meet != "" {
					break
				}
			}
			frontierFwd = next
		} else {
			var next []string
			for _, id := range frontierRev {
				for _, ref := range rev[id] {
					if haveRev[ref.to] {
						continue
					}
					parentRev[ref.to] = id
					haveRev[ref.to] = true
					next = append(next, ref.to)
					if haveFwd[ref.to] {
						meet = ref.to
						break
					}
				}
				if meet != "" {
					break
				}
			}
			frontierRev = next
		}
	}

	if meet == "" {
		return nil
	}

	var left []string
	for id := meet; ; {
		left = append([]string{id}, left...)
		parent := parentFwd[id]
		if parent == noParent {
			break
		}
		id = parent
	}

	var right []string
	for id := parentRev[meet]; ; {
		if id == "" {
			break
		}
		right = append(right, id)
		parent, ok := parentRev[id]
		if !ok {
			break
		}
		id = parent
	}

	return append(left, right...)
}

func (s *SQLiteStore) materializePath(ctx context.Context, ids []string, fwd adjacency) (*PathResult, error) {
	nodes, err := s.nodesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	ordered := make([]*graph.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			ordered = append(ordered, n)
		}
	}

	var edges []*graph.Edge
	for i := 0; i+1 < len(ids); i++ {
		for _, ref := range fwd[ids[i]] {
			if ref.to == ids[i+1] {
				edges = append(edges, ref.edge)
				break
			}
		}
	}

	return &PathResult{Nodes: ordered, Edges: edges}, nil
}

func (s *SQLiteStore) nodesByID(ctx context.Context, ids []string) ([]*graph.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, type, name, package, module, file_path, start_line, end_line, exported, properties
		FROM nodes WHERE id IN (%s)`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("store: nodes by id: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *SQLiteStore) edgesAmong(ctx context.Context, ids []string, edgeTypes EdgeSet) ([]*graph.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idPlaceholders := make([]string, len(ids))
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idPlaceholders[i] = "?"
		idArgs[i] = id
	}
	typeClause, typeArgs := edgeTypeClause("", edgeTypes)

	var args []any
	args = append(args, idArgs...)
	args = append(args, idArgs...)
	args = append(args, typeArgs...)

	q := fmt.Sprintf(`
		SELECT source, target, type, call_count, is_type_only, imported_symbols, context
		FROM edges
		WHERE source IN (%s) AND target IN (%s) %s`,
		strings.Join(idPlaceholders, ", "), strings.Join(idPlaceholders, ", "), typeClause)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: edges among: %w", err)
	}
	defer rows.Close()

	var out []*graph.Edge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEdgeRow(rows *sql.Rows) (*graph.Edge, error) {
	var e graph.Edge
	var isTypeOnly int
	var rawSymbols, context sql.NullString

	if err := rows.Scan(&e.Source, &e.Target, &e.Type, &e.CallCount, &isTypeOnly, &rawSymbols, &context); err != nil {
		return nil, err
	}
	e.IsTypeOnly = isTypeOnly != 0
	e.Context = context.String
	if rawSymbols.Valid && rawSymbols.String != "" {
		if err := json.Unmarshal([]byte(rawSymbols.String), &e.ImportedSymbols); err != nil {
			return nil, fmt.Errorf("store: unmarshal imported symbols for %s->%s: %w", e.Source, e.Target, err)
		}
	}
	return &e, nil
}

// edgeTypeClause builds a "AND [alias.]type IN (...)" fragment. alias may
// be empty when the query has no table alias.
func edgeTypeClause(alias string, edgeTypes EdgeSet) (string, []any) {
	if len(edgeTypes) == 0 {
		return "", nil
	}
	col := "type"
	if alias != "" {
		col = alias + ".type"
	}
	placeholders := make([]string, 0, len(edgeTypes))
	args := make([]any, 0, len(edgeTypes))
	for t := range edgeTypes {
		placeholders = append(placeholders, "?")
		args = append(args, string(t))
	}
	return fmt.Sprintf("AND %s IN (%s)", col, strings.Join(placeholders, ", ")), args
}

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

// Package query answers the three read-side questions the engine
// supports: what a symbol depends on, what depends on it, and how two
// symbols connect. It reads the Store (and, when a topic filter is given,
// the SearchBackend) and returns Reachability/PathResult values for the
// caller to hand to pkg/format.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// traversalEdgeTypes is the edge set dependenciesOf/dependentsOf walk:
// CALLS, REFERENCES, EXTENDS, IMPLEMENTS, USES_TYPE. CONTAINS and IMPORTS
// are structural, not dependency edges, so they are excluded.
var traversalEdgeTypes = store.NewEdgeSet(
	graph.EdgeCalls,
	graph.EdgeReferences,
	graph.EdgeExtends,
	graph.EdgeImplements,
	graph.EdgeUsesType,
)

// MaxTraversalDepth bounds dependenciesOf/dependentsOf, matching the
// teacher's TracePath safety limits adapted to an unbounded-fanout
// reachability walk rather than a per-path BFS.
const MaxTraversalDepth = 100

// ErrSymbolNotIndexed is returned when (file, symbol) resolves to no node.
var ErrSymbolNotIndexed = errors.New("query: symbol is not indexed")

// ErrSameSymbol is returned by PathsBetween when from == to.
var ErrSameSymbol = errors.New("query: source and target are the same symbol")

// Engine answers dependency and path queries against Store, optionally
// narrowing results with SearchBackend-backed topic relevance.
type Engine struct {
	Store  store.Store
	Search search.Backend
}

// New builds an Engine.
func New(st store.Store, sb search.Backend) *Engine {
	return &Engine{Store: st, Search: sb}
}

// SymbolRef identifies a node by the (file, symbol) pair users query with.
type SymbolRef struct {
	FilePath string
	Symbol   string
}

// Options narrows a dependenciesOf/dependentsOf query to nodes on a path
// to something topically relevant to Topic, via a SearchBackend hybrid
// search. Empty Topic means no filtering.
type Options struct {
	Topic string
}

// resolveOne resolves a SymbolRef to exactly one starting node id,
// preferring the first match when ResolveSymbol returns several
// (overloaded/repeated names in the same file resolve to the declaration
// order the extractor produced).
func (e *Engine) resolveOne(ctx context.Context, ref SymbolRef) (*graph.Node, error) {
	nodes, err := e.Store.ResolveSymbol(ctx, ref.FilePath, ref.Symbol)
	if err != nil {
		return nil, fmt.Errorf("query: resolve %s:%s: %w", ref.FilePath, ref.Symbol, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrSymbolNotIndexed, ref.FilePath, ref.Symbol)
	}
	return nodes[0], nil
}

// DependenciesOf resolves ref and returns everything it reaches via
// CALLS/REFERENCES/EXTENDS/IMPLEMENTS/USES_TYPE edges, up to
// MaxTraversalDepth hops. If opts.Topic is non-empty, the result is
// pruned to the chains that lead to a topically relevant node.
func (e *Engine) DependenciesOf(ctx context.Context, ref SymbolRef, opts Options) (*store.Reachability, error) {
	start, err := e.resolveOne(ctx, ref)
	if err != nil {
		return nil, err
	}
	reach, err := e.Store.OutgoingReachability(ctx, start.ID, traversalEdgeTypes, MaxTraversalDepth)
	if err != nil {
		return nil, fmt.Errorf("query: dependencies of %s: %w", start.ID, err)
	}
	if opts.Topic == "" {
		return reach, nil
	}
	relevant, err := e.topicRelevantIDs(ctx, opts.Topic)
	if err != nil {
		return nil, err
	}
	return filterEdgesToTopicRelevant(reach, start.ID, relevant, true), nil
}

// DependentsOf is DependenciesOf's symmetric incoming-edge counterpart.
func (e *Engine) DependentsOf(ctx context.Context, ref SymbolRef, opts Options) (*store.Reachability, error) {
	start, err := e.resolveOne(ctx, ref)
	if err != nil {
		return nil, err
	}
	reach, err := e.Store.IncomingReachability(ctx, start.ID, traversalEdgeTypes, MaxTraversalDepth)
	if err != nil {
		return nil, fmt.Errorf("query: dependents of %s: %w", start.ID, err)
	}
	if opts.Topic == "" {
		return reach, nil
	}
	relevant, err := e.topicRelevantIDs(ctx, opts.Topic)
	if err != nil {
		return nil, err
	}
	return filterEdgesToTopicRelevant(reach, start.ID, relevant, false), nil
}

// PathsBetween finds a path between from and to. Store.ShortestPath is
// already direction-agnostic (it tries from->to, then to->from), so this
// is mostly resolution plus the same-symbol guard; arrows in the
// rendered output always reflect the edge's real stored direction, not
// which side of the query the caller called "from".
func (e *Engine) PathsBetween(ctx context.Context, from, to SymbolRef) (*store.PathResult, error) {
	if from.FilePath == to.FilePath && from.Symbol == to.Symbol {
		return nil, ErrSameSymbol
	}
	src, err := e.resolveOne(ctx, from)
	if err != nil {
		return nil, err
	}
	dst, err := e.resolveOne(ctx, to)
	if err != nil {
		return nil, err
	}
	if src.ID == dst.ID {
		return nil, ErrSameSymbol
	}
	path, err := e.Store.ShortestPath(ctx, src.ID, dst.ID, traversalEdgeTypes, MaxTraversalDepth)
	if err != nil {
		return nil, fmt.Errorf("query: path %s -> %s: %w", src.ID, dst.ID, err)
	}
	return path, nil
}

// topicRelevantIDs runs a hybrid search for topic and returns the set of
// hit node ids. Embedding-less (BM25-only) searches are fine here: a
// topic filter only needs to know WHICH nodes are relevant, not rank
// them, so Options carries no Vector.
func (e *Engine) topicRelevantIDs(ctx context.Context, topic string) (map[string]bool, error) {
	results, err := e.Search.Search(ctx, topic, search.Options{Limit: 50}, nil)
	if err != nil {
		return nil, fmt.Errorf("query: topic search %q: %w", topic, err)
	}
	ids := make(map[string]bool, len(results))
	for _, r := range results {
		ids[r.ID] = true
	}
	return ids, nil
}

// filterEdgesToTopicRelevant keeps only the edges that lie on a path from
// start to some node in relevant, per the rule "keeps the start node's
// outgoing chain iff it can reach a topic-relevant node; removes dead
// branches otherwise". forward controls which direction "outgoing" means
// for this reachability set: true for DependenciesOf (edges point away
// from start), false for DependentsOf (edges point toward start, so the
// adjacency map used for the relevance BFS is built from Edge.Target to
// Edge.Source instead).
func filterEdgesToTopicRelevant(reach *store.Reachability, start string, relevant map[string]bool, forward bool) *store.Reachability {
	adj := make(map[string][]*graph.Edge)
	for _, e := range reach.Edges {
		var from, to string
		if forward {
			from, to = e.Source, e.Target
		} else {
			from, to = e.Target, e.Source
		}
		adj[from] = append(adj[from], e)
		_ = to
	}

	canReachRelevant := make(map[string]bool)
	var dfs func(id string, visiting map[string]bool) bool
	dfs = func(id string, visiting map[string]bool) bool {
		if v, ok := canReachRelevant[id]; ok {
			return v
		}
		if relevant[id] {
			canReachRelevant[id] = true
			return true
		}
		if visiting[id] {
			return false
		}
		visiting[id] = true
		defer delete(visiting, id)

		ok := false
		for _, e := range adj[id] {
			var next string
			if forward {
				next = e.Target
			} else {
				next = e.Source
			}
			if dfs(next, visiting) {
				ok = true
			}
		}
		canReachRelevant[id] = ok
		return ok
	}

	keepNode := make(map[string]bool)
	keepNode[start] = true
	dfs(start, map[string]bool{})

	var keptEdges []*graph.Edge
	for _, e := range reach.Edges {
		var from, to string
		if forward {
			from, to = e.Source, e.Target
		} else {
			from, to = e.Target, e.Source
		}
		if (from == start || canReachRelevant[from]) && canReachRelevant[to] {
			keptEdges = append(keptEdges, e)
			keepNode[e.Source] = true
			keepNode[e.Target] = true
		}
	}

	var keptNodes []*graph.Node
	for _, n := range reach.Nodes {
		if n.ID == start || keepNode[n.ID] {
			keptNodes = append(keptNodes, n)
		}
	}

	return &store.Reachability{Nodes: keptNodes, Edges: keptEdges}
}

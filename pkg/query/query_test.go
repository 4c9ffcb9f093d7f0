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

package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// fakeStore is a minimal in-memory store.Store built from an explicit
// node/edge list, enough to exercise Engine without SQLite.
type fakeStore struct {
	nodes map[string]*graph.Node
	edges []*graph.Edge
}

func newFakeStore() *fakeStore { return &fakeStore{nodes: map[string]*graph.Node{}} }

func (s *fakeStore) addNode(n *graph.Node)  { s.nodes[n.ID] = n }
func (s *fakeStore) addEdge(e *graph.Edge) { s.edges = append(s.edges, e) }

func (s *fakeStore) RemoveFile(ctx context.Context, path string) error          { return nil }
func (s *fakeStore) WriteNodes(ctx context.Context, nodes []*graph.Node) error  { return nil }
func (s *fakeStore) WriteEdges(ctx context.Context, edges []*graph.Edge) error  { return nil }
func (s *fakeStore) QueryNodes(ctx context.Context, filter store.NodeFilter) ([]*graph.Node, error) {
	return nil, nil
}
func (s *fakeStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	return s.nodes[id], nil
}

func (s *fakeStore) ResolveSymbol(ctx context.Context, filePath, symbol string) ([]*graph.Node, error) {
	var out []*graph.Node
	for _, n := range s.nodes {
		if n.FilePath == filePath && (n.Name == symbol || strings.HasSuffix(n.Name, "."+symbol)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) OutgoingReachability(ctx context.Context, src string, edgeTypes store.EdgeSet, maxDepth int) (*store.Reachability, error) {
	visited := map[string]bool{src: true}
	var edges []*graph.Edge
	queue := []string{src}
	for depth := 0; len(queue) > 0 && depth < maxDepth; depth++ {
		var next []string
		for _, id := range queue {
			for _, e := range s.edges {
				if e.Source != id || !edgeTypes[e.Type] {
					continue
				}
				edges = append(edges, e)
				if !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		queue = next
	}
	return s.reachabilityResult(visited, edges), nil
}

func (s *fakeStore) IncomingReachability(ctx context.Context, dst string, edgeTypes store.EdgeSet, maxDepth int) (*store.Reachability, error) {
	visited := map[string]bool{dst: true}
	var edges []*graph.Edge
	queue := []string{dst}
	for depth := 0; len(queue) > 0 && depth < maxDepth; depth++ {
		var next []string
		for _, id := range queue {
			for _, e := range s.edges {
				if e.Target != id || !edgeTypes[e.Type] {
					continue
				}
				edges = append(edges, e)
				if !visited[e.Source] {
					visited[e.Source] = true
					next = append(next, e.Source)
				}
			}
		}
		queue = next
	}
	return s.reachabilityResult(visited, edges), nil
}

func (s *fakeStore) reachabilityResult(visited map[string]bool, edges []*graph.Edge) *store.Reachability {
	var nodes []*graph.Node
	for id := range visited {
		if n, ok := s.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return &store.Reachability{Nodes: nodes, Edges: edges}
}

func (s *fakeStore) ShortestPath(ctx context.Context, src, dst string, edgeTypes store.EdgeSet, maxDepth int) (*store.PathResult, error) {
	path := s.bfsPath(src, dst, edgeTypes, maxDepth, true)
	if path == nil {
		path = s.bfsPath(dst, src, edgeTypes, maxDepth, true)
	}
	if path == nil {
		return nil, errors.New("no path")
	}
	return path, nil
}

// bfsPath finds a shortest src->dst path following edge direction
// forward. When !forward, the returned node/edge order is reversed so the
// sequence reads dst..src. ShortestPath's swapped retry passes forward, so
// a path found that way keeps its stored edge direction, as the real store
// returns it.
func (s *fakeStore) bfsPath(src, dst string, edgeTypes store.EdgeSet, maxDepth int, forward bool) *store.PathResult {
	type frame struct {
		id   string
		path []*graph.Node
		via  []*graph.Edge
	}
	start := s.nodes[src]
	if start == nil {
		return nil
	}
	visited := map[string]bool{src: true}
	queue := []frame{{id: src, path: []*graph.Node{start}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == dst {
			if !forward {
				reversedNodes := make([]*graph.Node, len(cur.path))
				for i, n := range cur.path {
					reversedNodes[len(cur.path)-1-i] = n
				}
				reversedEdges := make([]*graph.Edge, len(cur.via))
				for i, e := range cur.via {
					reversedEdges[len(cur.via)-1-i] = e
				}
				return &store.PathResult{Nodes: reversedNodes, Edges: reversedEdges}
			}
			return &store.PathResult{Nodes: cur.path, Edges: cur.via}
		}
		if len(cur.path) > maxDepth {
			continue
		}
		for _, e := range s.edges {
			if e.Source != cur.id || !edgeTypes[e.Type] || visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			n := s.nodes[e.Target]
			if n == nil {
				continue
			}
			queue = append(queue, frame{
				id:   e.Target,
				path: append(append([]*graph.Node{}, cur.path...), n),
				via:  append(append([]*graph.Edge{}, cur.via...), e),
			})
		}
	}
	return nil
}

func (s *fakeStore) BatchGetDocMeta(ctx context.Context, ids []string) (map[string]store.DocMeta, error) {
	return nil, nil
}
func (s *fakeStore) SchemaVersion(ctx context.Context) (int, error) { return store.CurrentSchemaVersion, nil }
func (s *fakeStore) Close() error                                   { return nil }

// fakeSearch returns a fixed result set regardless of query, enough to
// drive the topic-filter path.
type fakeSearch struct{ hits []search.Result }

func (b *fakeSearch) Add(ctx context.Context, docs []search.Document) error { return nil }
func (b *fakeSearch) Remove(ctx context.Context, id string) error          { return nil }
func (b *fakeSearch) RemoveByFile(ctx context.Context, filePath string) error { return nil }
func (b *fakeSearch) Search(ctx context.Context, query string, opts search.Options, backfill search.BackfillFunc) ([]search.Result, error) {
	return b.hits, nil
}
func (b *fakeSearch) Close() error { return nil }

func node(id, name, file string) *graph.Node {
	return &graph.Node{ID: id, Name: name, FilePath: file, Type: graph.NodeFunction}
}

func chainStore() *fakeStore {
	s := newFakeStore()
	names := []string{"entry", "step02", "step03", "step04", "step05"}
	for _, n := range names {
		s.addNode(node(n, n, "chain.go"))
	}
	for i := 0; i < len(names)-1; i++ {
		s.addEdge(&graph.Edge{Source: names[i], Target: names[i+1], Type: graph.EdgeCalls})
	}
	return s
}

func TestPathsBetweenForwardChain(t *testing.T) {
	s := chainStore()
	e := New(s, &fakeSearch{})

	res, err := e.PathsBetween(context.Background(), SymbolRef{FilePath: "chain.go", Symbol: "entry"}, SymbolRef{FilePath: "chain.go", Symbol: "step05"})
	if err != nil {
		t.Fatalf("PathsBetween: %v", err)
	}
	want := []string{"entry", "step02", "step03", "step04", "step05"}
	if len(res.Nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d: %+v", len(want), len(res.Nodes), res.Nodes)
	}
	for i, n := range res.Nodes {
		if n.ID != want[i] {
			t.Errorf("node %d: expected %s, got %s", i, want[i], n.ID)
		}
	}
}

func TestPathsBetweenIsDirectionAgnostic(t *testing.T) {
	s := chainStore()
	e := New(s, &fakeSearch{})

	res, err := e.PathsBetween(context.Background(), SymbolRef{FilePath: "chain.go", Symbol: "step05"}, SymbolRef{FilePath: "chain.go", Symbol: "entry"})
	if err != nil {
		t.Fatalf("PathsBetween (reversed args): %v", err)
	}
	want := []string{"entry", "step02", "step03", "step04", "step05"}
	if len(res.Nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(res.Nodes))
	}
	for i, n := range res.Nodes {
		if n.ID != want[i] {
			t.Errorf("node %d: expected %s, got %s", i, want[i], n.ID)
		}
	}
}

func TestPathsBetweenSameSymbolErrors(t *testing.T) {
	s := chainStore()
	e := New(s, &fakeSearch{})

	_, err := e.PathsBetween(context.Background(), SymbolRef{FilePath: "chain.go", Symbol: "entry"}, SymbolRef{FilePath: "chain.go", Symbol: "entry"})
	if !errors.Is(err, ErrSameSymbol) {
		t.Fatalf("expected ErrSameSymbol, got %v", err)
	}
}

func TestDependenciesOfUnfilteredReturnsWholeReachableSet(t *testing.T) {
	s := chainStore()
	e := New(s, &fakeSearch{})

	reach, err := e.DependenciesOf(context.Background(), SymbolRef{FilePath: "chain.go", Symbol: "entry"}, Options{})
	if err != nil {
		t.Fatalf("DependenciesOf: %v", err)
	}
	if len(reach.Nodes) != 5 {
		t.Fatalf("expected all 5 nodes reachable from entry, got %d", len(reach.Nodes))
	}
}

func TestDependenciesOfSymbolNotIndexed(t *testing.T) {
	s := newFakeStore()
	e := New(s, &fakeSearch{})

	_, err := e.DependenciesOf(context.Background(), SymbolRef{FilePath: "missing.go", Symbol: "ghost"}, Options{})
	if !errors.Is(err, ErrSymbolNotIndexed) {
		t.Fatalf("expected ErrSymbolNotIndexed, got %v", err)
	}
}

func TestDependenciesOfTopicFilterPrunesDeadBranches(t *testing.T) {
	// entry -> relevant -> deepRelevant
	// entry -> deadEnd (does not reach anything topic-relevant)
	s := newFakeStore()
	s.addNode(node("entry", "entry", "f.go"))
	s.addNode(node("relevant", "relevant", "f.go"))
	s.addNode(node("deepRelevant", "deepRelevant", "f.go"))
	s.addNode(node("deadEnd", "deadEnd", "f.go"))
	s.addEdge(&graph.Edge{Source: "entry", Target: "relevant", Type: graph.EdgeCalls})
	s.addEdge(&graph.Edge{Source: "relevant", Target: "deepRelevant", Type: graph.EdgeCalls})
	s.addEdge(&graph.Edge{Source: "entry", Target: "deadEnd", Type: graph.EdgeCalls})

	sb := &fakeSearch{hits: []search.Result{{ID: "deepRelevant", Score: 1}}}
	e := New(s, sb)

	reach, err := e.DependenciesOf(context.Background(), SymbolRef{FilePath: "f.go", Symbol: "entry"}, Options{Topic: "something"})
	if err != nil {
		t.Fatalf("DependenciesOf with topic: %v", err)
	}

	gotIDs := map[string]bool{}
	for _, n := range reach.Nodes {
		gotIDs[n.ID] = true
	}
	if !gotIDs["entry"] || !gotIDs["relevant"] || !gotIDs["deepRelevant"] {
		t.Errorf("expected entry/relevant/deepRelevant to survive filtering, got %+v", reach.Nodes)
	}
	if gotIDs["deadEnd"] {
		t.Errorf("expected deadEnd to be pruned, got %+v", reach.Nodes)
	}
}

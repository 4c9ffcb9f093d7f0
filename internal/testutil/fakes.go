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

// Package testutil provides in-memory fakes for pkg/store.Store,
// pkg/search.Backend, and pkg/embed.Cache so that pkg/pipeline and
// pkg/sync can be exercised end-to-end without SQLite, Bleve, or an
// embedding provider. It replaces the teacher's internal/testing,
// which fixtured a single cozodb-backed embedded store for one
// caller; this module's tests need lightweight fakes shared across
// several packages instead.
package testutil

import (
	"context"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// FakeStore is a minimal in-memory store.Store.
type FakeStore struct {
	Nodes map[string]*graph.Node
	Edges []*graph.Edge
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{Nodes: map[string]*graph.Node{}}
}

func (s *FakeStore) RemoveFile(ctx context.Context, path string) error {
	for id, n := range s.Nodes {
		if n.FilePath == path {
			delete(s.Nodes, id)
		}
	}
	kept := s.Edges[:0]
	for _, e := range s.Edges {
		if _, srcOK := s.Nodes[e.Source]; srcOK {
			kept = append(kept, e)
		}
	}
	s.Edges = kept
	return nil
}

func (s *FakeStore) WriteNodes(ctx context.Context, nodes []*graph.Node) error {
	for _, n := range nodes {
		s.Nodes[n.ID] = n
	}
	return nil
}

func (s *FakeStore) WriteEdges(ctx context.Context, edges []*graph.Edge) error {
	s.Edges = append(s.Edges, edges...)
	return nil
}

func (s *FakeStore) QueryNodes(ctx context.Context, filter store.NodeFilter) ([]*graph.Node, error) {
	return nil, nil
}

func (s *FakeStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	return s.Nodes[id], nil
}

func (s *FakeStore) ResolveSymbol(ctx context.Context, filePath, symbol string) ([]*graph.Node, error) {
	return nil, nil
}

func (s *FakeStore) OutgoingReachability(ctx context.Context, src string, edgeTypes store.EdgeSet, maxDepth int) (*store.Reachability, error) {
	return nil, nil
}

func (s *FakeStore) IncomingReachability(ctx context.Context, dst string, edgeTypes store.EdgeSet, maxDepth int) (*store.Reachability, error) {
	return nil, nil
}

func (s *FakeStore) ShortestPath(ctx context.Context, src, dst string, edgeTypes store.EdgeSet, maxDepth int) (*store.PathResult, error) {
	return nil, nil
}

func (s *FakeStore) BatchGetDocMeta(ctx context.Context, ids []string) (map[string]store.DocMeta, error) {
	out := map[string]store.DocMeta{}
	for _, id := range ids {
		n, ok := s.Nodes[id]
		if !ok {
			continue
		}
		meta := store.DocMeta{Snippet: n.Name}
		if n.Properties != nil {
			if h, ok := n.Properties["contentHash"].(string); ok {
				meta.ContentHash = h
			}
			if sn, ok := n.Properties["snippet"].(string); ok && sn != "" {
				meta.Snippet = sn
			}
		}
		out[id] = meta
	}
	return out, nil
}

func (s *FakeStore) SchemaVersion(ctx context.Context) (int, error) { return store.CurrentSchemaVersion, nil }
func (s *FakeStore) Close() error                                   { return nil }

// FakeSearch is a minimal in-memory search.Backend.
type FakeSearch struct {
	Docs map[string]search.Document
}

// NewFakeSearch returns an empty FakeSearch.
func NewFakeSearch() *FakeSearch {
	return &FakeSearch{Docs: map[string]search.Document{}}
}

func (b *FakeSearch) Add(ctx context.Context, docs []search.Document) error {
	for _, d := range docs {
		b.Docs[d.ID] = d
	}
	return nil
}

func (b *FakeSearch) Remove(ctx context.Context, id string) error {
	delete(b.Docs, id)
	return nil
}

func (b *FakeSearch) RemoveByFile(ctx context.Context, filePath string) error {
	for id, d := range b.Docs {
		if d.File == filePath {
			delete(b.Docs, id)
		}
	}
	return nil
}

func (b *FakeSearch) Search(ctx context.Context, query string, opts search.Options, backfill search.BackfillFunc) ([]search.Result, error) {
	return nil, nil
}

func (b *FakeSearch) Close() error { return nil }

// FakeCache is a minimal in-memory embed.Cache.
type FakeCache struct {
	Vectors map[string][]float32
}

// NewFakeCache returns an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{Vectors: map[string][]float32{}}
}

func (c *FakeCache) Get(ctx context.Context, contentHash string) ([]float32, bool, error) {
	v, ok := c.Vectors[contentHash]
	return v, ok, nil
}

func (c *FakeCache) GetBatch(ctx context.Context, hashes []string) (map[string][]float32, error) {
	out := map[string][]float32{}
	for _, h := range hashes {
		if v, ok := c.Vectors[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

func (c *FakeCache) Set(ctx context.Context, contentHash string, vector []float32) error {
	c.Vectors[contentHash] = vector
	return nil
}

func (c *FakeCache) Model() string { return "fake-model" }
func (c *FakeCache) Close() error  { return nil }

// FakeEmbedder returns a fixed-size vector for any text under MaxLen
// bytes (0 means unbounded). Over MaxLen it returns whatever error the
// function set by WithOverflow produces, so callers supply their own
// sentinel; with no such function set, every text gets the vector.
// Calls counts every Embed call.
type FakeEmbedder struct {
	MaxLen int
	Calls  int
	errFn  func(text string) error
}

// NewFakeEmbedder returns a FakeEmbedder with no size limit.
func NewFakeEmbedder() *FakeEmbedder { return &FakeEmbedder{} }

// WithOverflow sets the error FakeEmbedder returns once text exceeds
// MaxLen, so callers can plug in their own sentinel (e.g.
// pipeline.ErrContentTooLarge) without this package importing it.
func (e *FakeEmbedder) WithOverflow(maxLen int, errFn func(text string) error) *FakeEmbedder {
	e.MaxLen = maxLen
	e.errFn = errFn
	return e
}

func (e *FakeEmbedder) Model() string { return "fake-model" }

func (e *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.Calls++
	if e.MaxLen > 0 && len(text) > e.MaxLen && e.errFn != nil {
		return nil, e.errFn(text)
	}
	return []float32{1, 0, 0}, nil
}

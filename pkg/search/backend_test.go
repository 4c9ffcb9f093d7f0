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

package search

import (
	"context"
	"testing"
)

func newTestBackend(t *testing.T) Backend {
	t.Helper()
	b, err := NewHybridBackend()
	if err != nil {
		t.Fatalf("NewHybridBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestAddAndSearchBM25Only(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	docs := []Document{
		{ID: "n1", Symbol: "ParseConfig", File: "a.go", NodeType: "Function",
			Content: BuildContent("ParseConfig", PreparedSnippet("Function", "ParseConfig", "a.go", "func ParseConfig() {}"))},
		{ID: "n2", Symbol: "WriteFile", File: "b.go", NodeType: "Function",
			Content: BuildContent("WriteFile", PreparedSnippet("Function", "WriteFile", "b.go", "func WriteFile() {}"))},
	}
	if err := b.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := b.Search(ctx, "parse config", Options{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one hit")
	}
	if results[0].ID != "n1" {
		t.Fatalf("top hit = %s, want n1", results[0].ID)
	}
	if !results[0].FromBM25 {
		t.Fatal("expected FromBM25 true")
	}
	if results[0].Score <= 0 || results[0].Score > 0.5 {
		t.Fatalf("BM25-only score = %v, want in (0, 0.5]", results[0].Score)
	}
}

func TestRemoveByFileDropsAllItsDocuments(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	docs := []Document{
		{ID: "n1", Symbol: "Foo", File: "a.go", NodeType: "Function", Content: "foo function"},
		{ID: "n2", Symbol: "Bar", File: "a.go", NodeType: "Function", Content: "bar function"},
		{ID: "n3", Symbol: "Baz", File: "b.go", NodeType: "Function", Content: "baz function"},
	}
	if err := b.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.RemoveByFile(ctx, "a.go"); err != nil {
		t.Fatalf("RemoveByFile: %v", err)
	}

	results, err := b.Search(ctx, "foo", Options{Limit: 10}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "n1" || r.ID == "n2" {
			t.Fatalf("expected a.go documents removed, found %s", r.ID)
		}
	}
}

func TestSearchHybridBackfillsCosineForBM25OnlyHit(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	vecMatch := []float32{1, 0, 0}
	docs := []Document{
		{ID: "n1", Symbol: "ParseConfig", File: "a.go", NodeType: "Function",
			Content: BuildContent("ParseConfig", PreparedSnippet("Function", "ParseConfig", "a.go", "parses config"))},
	}
	if err := b.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	backfillCalled := false
	backfill := func(ctx context.Context, ids []string) (map[string][]float32, error) {
		backfillCalled = true
		out := make(map[string][]float32, len(ids))
		for _, id := range ids {
			out[id] = vecMatch
		}
		return out, nil
	}

	results, err := b.Search(ctx, "parse config", Options{Limit: 10, Vector: vecMatch}, backfill)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !backfillCalled {
		t.Fatal("expected backfill to be invoked for BM25-only hit")
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Cosine <= 0.99 {
		t.Fatalf("expected near-perfect cosine after backfill, got %v", results[0].Cosine)
	}
	if results[0].Score <= 0.5 {
		t.Fatalf("expected hybrid score > 0.5 with cosine+bm25 both contributing, got %v", results[0].Score)
	}
}

func TestSearchSkipsHitOnBackfillDesync(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	docs := []Document{
		{ID: "n1", Symbol: "ParseConfig", File: "a.go", NodeType: "Function",
			Content: BuildContent("ParseConfig", PreparedSnippet("Function", "ParseConfig", "a.go", "parses config"))},
	}
	if err := b.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	backfill := func(ctx context.Context, ids []string) (map[string][]float32, error) {
		return map[string][]float32{}, nil // store desync: nothing found
	}

	results, err := b.Search(ctx, "parse config", Options{Limit: 10, Vector: []float32{1, 0, 0}}, backfill)
	if err != nil {
		t.Fatalf("Search must not fail on desync: %v", err)
	}
	// Cosine stays zero, but the BM25-normalized half still contributes.
	if len(results) != 1 {
		t.Fatalf("expected the BM25 half of the score to still produce a result, got %d", len(results))
	}
	if results[0].Cosine != 0 {
		t.Fatalf("expected cosine 0 after skipped backfill, got %v", results[0].Cosine)
	}
}

func TestNodeTypeFilterExcludesNonMatching(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	docs := []Document{
		{ID: "n1", Symbol: "Widget", File: "a.go", NodeType: "Class", Content: "widget class"},
		{ID: "n2", Symbol: "widgetFn", File: "a.go", NodeType: "Function", Content: "widget function"},
	}
	if err := b.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := b.Search(ctx, "widget", Options{Limit: 10, NodeTypes: []string{"Class"}}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "n2" {
			t.Fatal("expected Function node filtered out")
		}
	}
}

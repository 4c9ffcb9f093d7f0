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

func TestBM25IndexAddAndSearch(t *testing.T) {
	idx, err := newBM25Index()
	if err != nil {
		t.Fatalf("newBM25Index: %v", err)
	}
	defer idx.close()

	docs := []Document{
		{ID: "n1", Content: "http server config parses options"},
		{ID: "n2", Content: "write file to disk"},
	}
	if err := idx.add(docs); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := idx.search(context.Background(), "server config", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "n1" {
		t.Fatalf("expected n1 top hit, got %+v", hits)
	}
}

func TestBM25IndexTokenizerSplitsAcronymIdentifier(t *testing.T) {
	idx, err := newBM25Index()
	if err != nil {
		t.Fatalf("newBM25Index: %v", err)
	}
	defer idx.close()

	if err := idx.add([]Document{{ID: "n1", Content: "HTTPServerConfig"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := idx.search(context.Background(), "http config", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected the split-identifier sub-tokens to match the query")
	}
}

func TestBM25IndexRemove(t *testing.T) {
	idx, err := newBM25Index()
	if err != nil {
		t.Fatalf("newBM25Index: %v", err)
	}
	defer idx.close()

	if err := idx.add([]Document{{ID: "n1", Content: "parse config"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.remove([]string{"n1"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	hits, err := idx.search(context.Background(), "parse config", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after removal, got %+v", hits)
	}
}

func TestBM25IndexSearchEmptyQueryReturnsNoHits(t *testing.T) {
	idx, err := newBM25Index()
	if err != nil {
		t.Fatalf("newBM25Index: %v", err)
	}
	defer idx.close()

	hits, err := idx.search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected nil hits for empty query, got %+v", hits)
	}
}

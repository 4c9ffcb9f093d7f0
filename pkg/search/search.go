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

// Package search implements the hybrid BM25 + vector index over indexable
// symbols: an in-memory bleve index for lexical search, a pure-Go HNSW
// graph for vector search, and a combining layer that fuses the two by
// the formula 0.5*cosine + 0.5*normalized-bm25.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Document is one indexable symbol.
type Document struct {
	ID          string
	Symbol      string
	File        string
	NodeType    string
	Content     string
	ContentHash string
	Embedding   []float32 // nil for BM25-only documents
}

// PreparedSnippet formats a node's doc-comment-style snippet header, used
// both for the search document's content and for the embedder input.
func PreparedSnippet(nodeType, name, filePath, snippet string) string {
	return fmt.Sprintf("// %s: %s\n// File: %s\n\n%s", nodeType, name, filePath, snippet)
}

// BuildContent assembles the final indexable content string:
// "<splitIdentifier> <symbol> <preparedSnippet>".
func BuildContent(symbol, preparedSnippet string) string {
	return SplitIdentifier(symbol) + " " + symbol + " " + preparedSnippet
}

// Options controls a Search call.
type Options struct {
	Limit               int
	NodeTypes           []string
	FilePattern         string
	Vector              []float32
	SimilarityThreshold float64
}

// Result is one hybrid search hit.
type Result struct {
	ID         string
	Score      float64
	BM25       float64
	Cosine     float64
	FromBM25   bool
	FromVector bool
}

// BackfillFunc fetches (or computes, via the embedder, caching the
// result) the embedding vectors for a batch of document ids. It is
// supplied by the pipeline layer, which alone knows how to reach the
// Store and EmbeddingCache — keeping this package free of those
// dependencies.
type BackfillFunc func(ctx context.Context, ids []string) (map[string][]float32, error)

// Backend is the contract the ingestion pipeline and query engine
// program against.
type Backend interface {
	Add(ctx context.Context, docs []Document) error
	Remove(ctx context.Context, id string) error
	RemoveByFile(ctx context.Context, filePath string) error
	Search(ctx context.Context, query string, opts Options, backfill BackfillFunc) ([]Result, error)
	Close() error
}

// SplitIdentifier decomposes camelCase, PascalCase, snake_case,
// kebab-case, and acronym runs into space-separated lowercase tokens, so
// that e.g. "HTTPServerConfig" tokenizes as "http server config" and a
// query for "http config" can match it lexically.
func SplitIdentifier(s string) string {
	var tokens []string
	var cur strings.Builder

	runes := []rune(s)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == '/' || r == ' ':
			flush()
		case isUpper(r):
			// Boundary before an uppercase letter that follows a
			// lowercase/digit ("fooBar" -> "foo", "Bar"), or before the
			// last letter of an acronym run followed by a lowercase
			// ("HTTPServer" -> "HTTP", "Server").
			if i > 0 {
				prev := runes[i-1]
				nextIsLower := i+1 < len(runes) && isLower(runes[i+1])
				if isLower(prev) || isDigit(prev) {
					flush()
				} else if isUpper(prev) && nextIsLower {
					flush()
				}
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return strings.Join(tokens, " ")
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

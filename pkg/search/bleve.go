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
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	codeTokenizerName = "cie_code_tokenizer"
	codeAnalyzerName  = "cie_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, newCodeTokenizer)
}

// bm25Index wraps an in-memory bleve index, holding exactly the content
// field every search document carries. It is kept in memory only: the
// engine's searchable index is rebuilt from the Store on every process
// start, so there is nothing to persist to disk (spec.md's non-goal on
// cross-process search persistence).
type bm25Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

type bleveDoc struct {
	Content string `json:"content"`
}

func newBM25Index() (*bm25Index, error) {
	m, err := buildMapping()
	if err != nil {
		return nil, fmt.Errorf("search: build bleve mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("search: create bleve index: %w", err)
	}
	return &bm25Index{index: idx}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     codeTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

func (b *bm25Index) add(docs []Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, bleveDoc{Content: d.Content}); err != nil {
			return fmt.Errorf("search: index doc %s: %w", d.ID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *bm25Index) remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

type bm25Hit struct {
	ID    string
	Score float64
}

func (b *bm25Index) search(ctx context.Context, query string, limit int) ([]bm25Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: bleve search: %w", err)
	}

	hits := make([]bm25Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, bm25Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (b *bm25Index) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

// codeTokenizer splits on the same identifier boundaries as
// SplitIdentifier, so that a query for "http config" matches a document
// containing "HTTPServerConfig" via the indexed sub-tokens, in addition
// to the literal symbol.
type codeTokenizer struct{}

func newCodeTokenizer(_ map[string]any, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	fields := strings.Fields(text)

	stream := make(analysis.TokenStream, 0, len(fields)*2)
	pos := 1
	offset := 0

	for _, field := range fields {
		start := strings.Index(text[offset:], field)
		if start == -1 {
			start = 0
		} else {
			start += offset
		}
		end := start + len(field)
		offset = end

		stream = append(stream, &analysis.Token{
			Term:     []byte(strings.ToLower(field)),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++

		for _, sub := range strings.Fields(SplitIdentifier(field)) {
			if sub == strings.ToLower(field) {
				continue
			}
			stream = append(stream, &analysis.Token{
				Term:     []byte(sub),
				Start:    start,
				End:      end,
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
		}
	}

	return stream
}

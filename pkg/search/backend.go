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
	"path"
	"sort"
	"sync"
)

// bm25WideNetLimit is the fixed BM25 fan-out used whenever a vector is
// present in the query: BM25 casts a much wider net than the caller's
// requested limit so that hybrid scoring has enough lexical candidates
// to merge against the vector hits before truncating to limit.
const bm25WideNetLimit = 1000

// vectorSimilarityFloor is the minimum cosine similarity a pure vector
// hit must clear to be considered at all.
const vectorSimilarityFloor = 0.6

// hybridBackend is the Backend implementation combining a bleve BM25
// index with an HNSW vector index, merging hits by document id per
// spec.md §4.7/§4.8.
type hybridBackend struct {
	bm25   *bm25Index
	vector *vectorIndex

	mu     sync.RWMutex
	docs   map[string]Document // id -> document, for node-type/file-pattern filters and backfill
	byFile map[string][]string // filePath -> ids, for RemoveByFile
}

// NewHybridBackend constructs the combined BM25+vector search backend.
func NewHybridBackend() (Backend, error) {
	bm25, err := newBM25Index()
	if err != nil {
		return nil, err
	}
	return &hybridBackend{
		bm25:   bm25,
		vector: newVectorIndex(),
		docs:   make(map[string]Document),
		byFile: make(map[string][]string),
	}, nil
}

func (h *hybridBackend) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := h.bm25.add(docs); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, d := range docs {
		h.docs[d.ID] = d
		h.byFile[d.File] = append(h.byFile[d.File], d.ID)
		if d.Embedding != nil {
			h.vector.add(d.ID, d.Embedding)
		}
	}
	return nil
}

func (h *hybridBackend) Remove(ctx context.Context, id string) error {
	if err := h.bm25.remove([]string{id}); err != nil {
		return err
	}
	h.vector.remove(id)

	h.mu.Lock()
	defer h.mu.Unlock()

	doc, ok := h.docs[id]
	if !ok {
		return nil
	}
	delete(h.docs, id)
	h.byFile[doc.File] = removeString(h.byFile[doc.File], id)
	if len(h.byFile[doc.File]) == 0 {
		delete(h.byFile, doc.File)
	}
	return nil
}

func (h *hybridBackend) RemoveByFile(ctx context.Context, filePath string) error {
	h.mu.Lock()
	ids := append([]string(nil), h.byFile[filePath]...)
	delete(h.byFile, filePath)
	for _, id := range ids {
		delete(h.docs, id)
	}
	h.mu.Unlock()

	if err := h.bm25.remove(ids); err != nil {
		return err
	}
	for _, id := range ids {
		h.vector.remove(id)
	}
	return nil
}

func (h *hybridBackend) Close() error {
	return h.bm25.close()
}

// mergedHit accumulates BM25 and/or vector evidence for one document id
// before the final hybrid score is computed.
type mergedHit struct {
	id         string
	bm25       float64
	cosine     float64
	fromBM25   bool
	fromVector bool
}

func (h *hybridBackend) Search(ctx context.Context, query string, opts Options, backfill BackfillFunc) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	if opts.Vector == nil {
		return h.searchBM25Only(ctx, query, opts, limit)
	}
	return h.searchHybrid(ctx, query, opts, limit, backfill)
}

func (h *hybridBackend) searchBM25Only(ctx context.Context, query string, opts Options, limit int) ([]Result, error) {
	hits, err := h.bm25.search(ctx, query, limit*4)
	if err != nil {
		return nil, err
	}

	maxBM25 := maxBM25Score(hits)

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if !h.passesFilters(hit.ID, opts) {
			continue
		}
		score := 0.0
		if maxBM25 > 0 {
			score = 0.5 * (hit.Score / maxBM25)
		}
		if score <= 0 {
			continue
		}
		results = append(results, Result{ID: hit.ID, Score: score, BM25: hit.Score, FromBM25: true})
	}

	sortResultsDesc(results)
	return truncate(results, limit), nil
}

func (h *hybridBackend) searchHybrid(ctx context.Context, query string, opts Options, limit int, backfill BackfillFunc) ([]Result, error) {
	bm25Hits, err := h.bm25.search(ctx, query, bm25WideNetLimit)
	if err != nil {
		return nil, err
	}

	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = vectorSimilarityFloor
	}
	vectorHits, err := h.vector.search(opts.Vector, limit*4)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*mergedHit)
	for _, hit := range bm25Hits {
		merged[hit.ID] = &mergedHit{id: hit.ID, bm25: hit.Score, fromBM25: true}
	}
	for _, hit := range vectorHits {
		if hit.Cosine < threshold {
			continue
		}
		if m, ok := merged[hit.ID]; ok {
			m.cosine = hit.Cosine
			m.fromVector = true
		} else {
			merged[hit.ID] = &mergedHit{id: hit.ID, cosine: hit.Cosine, fromVector: true}
		}
	}

	if err := h.backfillCosines(ctx, merged, opts.Vector, backfill); err != nil {
		return nil, err
	}

	maxBM25 := 0.0
	for _, m := range merged {
		if m.bm25 > maxBM25 {
			maxBM25 = m.bm25
		}
	}

	results := make([]Result, 0, len(merged))
	for _, m := range merged {
		if !h.passesFilters(m.id, opts) {
			continue
		}
		bm25Norm := 0.0
		if maxBM25 > 0 {
			bm25Norm = m.bm25 / maxBM25
		}
		score := 0.5*m.cosine + 0.5*bm25Norm
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			ID: m.id, Score: score, BM25: m.bm25, Cosine: m.cosine,
			FromBM25: m.fromBM25, FromVector: m.fromVector,
		})
	}

	sortResultsDesc(results)
	return truncate(results, limit), nil
}

// backfillCosines computes cosine similarity for merged hits that only
// matched on BM25, per §4.8: fetch the document's embedding (via cache
// or a fresh embedder call through the injected closure), then compute
// cosine against the query vector directly rather than through the
// HNSW graph.
func (h *hybridBackend) backfillCosines(ctx context.Context, merged map[string]*mergedHit, queryVec []float32, backfill BackfillFunc) error {
	if backfill == nil {
		return nil
	}

	var needBackfill []string
	for _, m := range merged {
		if m.fromBM25 && !m.fromVector {
			needBackfill = append(needBackfill, m.id)
		}
	}
	if len(needBackfill) == 0 {
		return nil
	}

	vectors, err := backfill(ctx, needBackfill)
	if err != nil {
		return fmt.Errorf("search: cosine backfill: %w", err)
	}

	for _, id := range needBackfill {
		vec, ok := vectors[id]
		if !ok {
			// Node not found by the backfill closure (store desync):
			// skip this hit rather than fail the whole query.
			continue
		}
		c, err := cosine(queryVec, vec)
		if err != nil {
			continue
		}
		merged[id].cosine = c
	}
	return nil
}

func (h *hybridBackend) passesFilters(id string, opts Options) bool {
	if len(opts.NodeTypes) == 0 && opts.FilePattern == "" {
		return true
	}

	h.mu.RLock()
	doc, ok := h.docs[id]
	h.mu.RUnlock()
	if !ok {
		return true // bleve/hnsw may hold ids not tracked locally yet; don't over-filter
	}

	if len(opts.NodeTypes) > 0 {
		match := false
		for _, t := range opts.NodeTypes {
			if t == doc.NodeType {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if opts.FilePattern != "" && !globMatch(opts.FilePattern, doc.File) {
		return false
	}

	return true
}

func maxBM25Score(hits []bm25Hit) float64 {
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}

func sortResultsDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func truncate(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// globMatch matches filePattern (a path.Match-style glob, e.g.
// "src/**/*.ts" simplified to "src/*/*.ts" semantics since path.Match has
// no recursive-** support) against a project-relative file path.
func globMatch(filePattern, filePath string) bool {
	ok, err := path.Match(filePattern, filePath)
	if err != nil {
		return false
	}
	return ok
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

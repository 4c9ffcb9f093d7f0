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
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// vectorIndex wraps a pure-Go HNSW graph keyed by uint64, with a
// string<->uint64 id mapping layered on top since every document in this
// package is addressed by its graph node id. Deletions are lazy: the
// underlying coder/hnsw graph has no safe general-purpose delete, so a
// removed id is simply dropped from the mappings and its graph node
// becomes an orphan, invisible to search.
type vectorIndex struct {
	mu sync.RWMutex

	graph *hnsw.Graph[uint64]

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
}

func newVectorIndex() *vectorIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &vectorIndex{
		graph:   g,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
	}
}

func (v *vectorIndex) add(id string, vec []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.idToKey[id]; ok {
		delete(v.keyToID, existing)
		delete(v.idToKey, id)
	}

	key := v.nextKey
	v.nextKey++

	norm := make([]float32, len(vec))
	copy(norm, vec)
	normalizeInPlace(norm)

	v.graph.Add(hnsw.MakeNode(key, norm))
	v.idToKey[id] = key
	v.keyToID[key] = id
}

func (v *vectorIndex) remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.idToKey[id]; ok {
		delete(v.keyToID, key)
		delete(v.idToKey, id)
	}
}

type vectorHit struct {
	ID     string
	Cosine float64
}

func (v *vectorIndex) search(query []float32, k int) ([]vectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil, nil
	}

	norm := make([]float32, len(query))
	copy(norm, query)
	normalizeInPlace(norm)

	nodes := v.graph.Search(norm, k)

	hits := make([]vectorHit, 0, len(nodes))
	for _, n := range nodes {
		id, ok := v.keyToID[n.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		dist := v.graph.Distance(norm, n.Value)
		hits = append(hits, vectorHit{ID: id, Cosine: cosineFromDistance(dist)})
	}
	return hits, nil
}

// cosine computes cosine similarity directly, used for the backfill path
// where a query vector is compared against one freshly embedded vector
// rather than looked up through the graph.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("search: vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func cosineFromDistance(d float32) float64 {
	return 1.0 - float64(d)/2.0
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

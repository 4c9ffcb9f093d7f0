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

import "testing"

func TestVectorIndexSearchReturnsClosestFirst(t *testing.T) {
	v := newVectorIndex()
	v.add("close", []float32{1, 0, 0})
	v.add("far", []float32{0, 1, 0})

	hits, err := v.search([]float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].ID != "close" {
		t.Fatalf("top hit = %s, want close", hits[0].ID)
	}
}

func TestVectorIndexRemoveIsLazyAndExcludesFromSearch(t *testing.T) {
	v := newVectorIndex()
	v.add("a", []float32{1, 0, 0})
	v.remove("a")

	hits, err := v.search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, h := range hits {
		if h.ID == "a" {
			t.Fatal("expected removed id excluded from search results")
		}
	}
}

func TestVectorIndexReAddReplacesMapping(t *testing.T) {
	v := newVectorIndex()
	v.add("a", []float32{1, 0, 0})
	v.add("a", []float32{0, 1, 0})

	hits, err := v.search([]float32{0, 1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ID == "a" {
			found = true
			if h.Cosine < 0.99 {
				t.Fatalf("expected near-perfect match after re-add, got %v", h.Cosine)
			}
		}
	}
	if !found {
		t.Fatal("expected re-added id present")
	}
}

func TestCosineIdenticalVectorsIsOne(t *testing.T) {
	c, err := cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if c < 0.999 {
		t.Fatalf("cosine(v, v) = %v, want ~1", c)
	}
}

func TestCosineDimensionMismatchErrors(t *testing.T) {
	if _, err := cosine([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

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

package embed

import (
	"context"
	"testing"
)

func TestSetThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := Open(t.TempDir(), "text-embedding-3-small")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	vec := []float32{0.1, 0.2, 0.3}
	if err := c.Set(ctx, "hash1", vec); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "hash1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	for i, v := range vec {
		if got[i] != v {
			t.Fatalf("Get = %v, want %v", got, vec)
		}
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c, err := Open(t.TempDir(), "m")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestGetBatchMixedHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	c, err := Open(t.TempDir(), "m")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "h1", []float32{1, 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.GetBatch(ctx, []string{"h1", "h2"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if _, ok := got["h1"]; !ok {
		t.Fatal("expected h1 present")
	}
	if _, ok := got["h2"]; ok {
		t.Fatal("expected h2 absent")
	}
}

func TestSetIsIdempotentOnReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c1, err := Open(dir, "m")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c1.Set(ctx, "h1", []float32{3, 4, 5}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(dir, "m")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	vec, ok, err := c2.Get(ctx, "h1")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if len(vec) != 3 || vec[2] != 5 {
		t.Fatalf("Get after reopen = %v", vec)
	}
}

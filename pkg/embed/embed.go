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

// Package embed persists embedding vectors in a content-hash-keyed store,
// one physical database per embedding model name, so that re-extracting
// unchanged code never re-pays an embedding call.
package embed

import (
	"context"
)

// Cache is the contract the ingestion pipeline programs against.
type Cache interface {
	// Get returns the cached vector for contentHash, if present.
	Get(ctx context.Context, contentHash string) ([]float32, bool, error)

	// GetBatch returns whatever subset of hashes is already cached.
	// Missing hashes are simply absent from the result map.
	GetBatch(ctx context.Context, hashes []string) (map[string][]float32, error)

	// Set stores vector under contentHash. Entries are never evicted:
	// content-addressing makes every write idempotent.
	Set(ctx context.Context, contentHash string, vector []float32) error

	// Model returns the embedding model name this cache instance serves.
	Model() string

	Close() error
}

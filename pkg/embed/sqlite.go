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
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// DefaultHotCacheSize bounds the in-process LRU layer sitting in front of
// the persistent store, the same "pay once per process, not once per
// call" shape as a plain in-memory cache, but backed by durable storage
// instead of a remote embedder.
const DefaultHotCacheSize = 4096

// SQLiteCache is a Cache backed by one SQLite database per model. Reads
// are served from an in-process LRU first; misses fall through to SQLite
// and populate the LRU.
type SQLiteCache struct {
	model string
	db    *sql.DB
	hot   *lru.Cache[string, []float32]
	mu    sync.RWMutex
}

// Open opens (creating if absent) the embedding cache for model at
// <cacheDir>/embedding-cache/<model>.db.
func Open(cacheDir, model string) (*SQLiteCache, error) {
	dir := filepath.Join(cacheDir, "embedding-cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("embed: create dir %s: %w", dir, err)
	}

	safeModel := strings.NewReplacer("/", "_", ":", "_").Replace(model)
	path := filepath.Join(dir, safeModel+".db")

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("embed: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("embed: enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		hash   TEXT PRIMARY KEY,
		vector BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("embed: create schema: %w", err)
	}

	hot, _ := lru.New[string, []float32](DefaultHotCacheSize)

	return &SQLiteCache{model: model, db: db, hot: hot}, nil
}

// Model implements Cache.
func (c *SQLiteCache) Model() string { return c.model }

// Close implements Cache.
func (c *SQLiteCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, contentHash string) ([]float32, bool, error) {
	if vec, ok := c.hot.Get(contentHash); ok {
		return vec, true, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE hash = ?`, contentHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embed: get %s: %w", contentHash, err)
	}

	vec := decodeVector(raw)
	c.hot.Add(contentHash, vec)
	return vec, true, nil
}

// GetBatch implements Cache.
func (c *SQLiteCache) GetBatch(ctx context.Context, hashes []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(hashes))
	var misses []string

	for _, h := range hashes {
		if vec, ok := c.hot.Get(h); ok {
			out[h] = vec
		} else {
			misses = append(misses, h)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	placeholders := make([]string, len(misses))
	args := make([]any, len(misses))
	for i, h := range misses {
		placeholders[i] = "?"
		args[i] = h
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT hash, vector FROM embeddings WHERE hash IN (%s)`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("embed: get batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		var raw []byte
		if err := rows.Scan(&hash, &raw); err != nil {
			return nil, err
		}
		vec := decodeVector(raw)
		out[hash] = vec
		c.hot.Add(hash, vec)
	}
	return out, rows.Err()
}

// Set implements Cache.
func (c *SQLiteCache) Set(ctx context.Context, contentHash string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw := encodeVector(vector)
	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO embeddings(hash, vector) VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET vector = excluded.vector`, contentHash, raw); err != nil {
		return fmt.Errorf("embed: set %s: %w", contentHash, err)
	}

	c.hot.Add(contentHash, vector)
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) []float32 {
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec
}

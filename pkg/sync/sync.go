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

// Package sync reconciles the Store and SearchBackend against the files
// actually on disk at startup: a file added, modified, or deleted since
// the last run is detected by diffing a Manifest, and the delta is
// applied through the pipeline's indexFile.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/cie/internal/contract"
	"github.com/kraklabs/cie/internal/metrics"
	"github.com/kraklabs/cie/pkg/ingest"
	"github.com/kraklabs/cie/pkg/manifest"
	"github.com/kraklabs/cie/pkg/pipeline"
	"github.com/kraklabs/cie/pkg/registry"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// ListFiles enumerates a package root's indexable source files
// (project-relative paths), excluding node_modules directories and
// declaration-only files. Abstracted so tests can supply an in-memory
// fixture instead of walking real disk.
type ListFiles func(root string) ([]string, error)

// StatFile returns the (mtime, size) pair manifest.Diff compares against.
type StatFile func(path string) (manifest.FileState, error)

// ReadFile reads a project-relative file's full contents for indexing.
type ReadFile func(path string) ([]byte, error)

// Engine reconciles Store/SearchBackend state against disk on startup.
type Engine struct {
	Pipeline *pipeline.Pipeline
	Registry *registry.Registry
	Store    store.Store
	Search   search.Backend
	Packages []registry.PackageConfig

	ListFiles ListFiles
	Stat      StatFile
	Read      ReadFile

	Logger *slog.Logger
}

// New builds an Engine with OS-backed file enumeration, stat, and read,
// suitable for production use. Tests construct an Engine literal directly
// with fakes instead.
func New(p *pipeline.Pipeline, reg *registry.Registry, st store.Store, sb search.Backend, packages []registry.PackageConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Pipeline:  p,
		Registry:  reg,
		Store:     st,
		Search:    sb,
		Packages:  packages,
		ListFiles: osListFiles,
		Stat:      osStatFile,
		Read:      os.ReadFile,
		Logger:    logger,
	}
}

// Result reports what Sync applied.
type Result struct {
	StaleCount   int
	DeletedCount int
	AddedCount   int
	DurationMs   int64
	Errors       []string
}

// Sync gathers every configured package's current source files, diffs
// them against m, and applies the delta: deleted files are removed from
// the Store and SearchBackend; stale and added files are re-indexed via
// Pipeline.IndexFile. Per-file errors are collected, never fatal — sync
// always completes and reports what it could. m is mutated and saved in
// place on success.
func (e *Engine) Sync(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	start := time.Now()
	res := &Result{}

	current := make(map[string]manifest.FileState)
	var changedPaths []string
	for _, pkg := range e.Packages {
		paths, err := e.ListFiles(pkg.Root)
		if err != nil {
			return nil, fmt.Errorf("sync: list files under %s: %w", pkg.Root, err)
		}
		for _, p := range paths {
			state, err := e.Stat(p)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p, err))
				continue
			}
			current[p] = state
		}
	}

	diff := m.Diff(current)
	res.StaleCount = len(diff.Stale)
	res.AddedCount = len(diff.Added)
	res.DeletedCount = len(diff.Deleted)

	for _, path := range diff.Deleted {
		if err := e.Store.RemoveFile(ctx, path); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: remove from store: %v", path, err))
			continue
		}
		if err := e.Search.RemoveByFile(ctx, path); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: remove from search: %v", path, err))
		}
	}

	changedPaths = append(changedPaths, diff.Stale...)
	changedPaths = append(changedPaths, diff.Added...)
	sort.Strings(changedPaths)

	updated := make(map[string]manifest.FileState, len(changedPaths))
	for _, path := range changedPaths {
		src, err := e.Read(path)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: read: %v", path, err))
			continue
		}
		if v := contract.ValidateSourceSize(path, src); !v.OK {
			res.Errors = append(res.Errors, v.Message)
			continue
		}

		pkgName := ""
		if owner := e.Registry.OwningPackage(path); owner != nil {
			pkgName = owner.Name
		}

		fr, err := e.Pipeline.IndexFile(ctx, pipeline.FileInput{Path: path, Package: pkgName, Source: src})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: index: %v", path, err))
			continue
		}
		for _, fileErr := range fr.Errors {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", path, fileErr))
		}
		updated[path] = current[path]
	}

	m.Update(updated, diff.Deleted)
	if err := m.Save(); err != nil {
		return nil, fmt.Errorf("sync: save manifest: %w", err)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	duration := time.Since(start)
	metrics.RecordSync(res.AddedCount, res.StaleCount, res.DeletedCount, len(res.Errors), duration)
	e.Logger.Info("sync.complete",
		"stale", res.StaleCount, "added", res.AddedCount, "deleted", res.DeletedCount,
		"errors", len(res.Errors), "duration_ms", res.DurationMs)
	return res, nil
}

// osListFiles walks root on disk, skipping node_modules/.git directories
// and TypeScript declaration files, keeping only files ingest.LanguageForPath
// recognizes.
func osListFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "node_modules", ".git", "dist", "build":
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".d.ts") {
			return nil
		}
		if ingest.LanguageForPath(p) == "" {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// osStatFile reads path's current (mtime, size) from disk.
func osStatFile(path string) (manifest.FileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return manifest.FileState{}, err
	}
	return manifest.FileState{ModTime: info.ModTime(), Size: info.Size()}, nil
}

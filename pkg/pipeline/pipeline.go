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

// Package pipeline wires the Extractor, Store, SearchBackend, and
// EmbeddingCache together into the per-file and per-project indexing
// sequence: extract, write, embed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kraklabs/cie/pkg/embed"
	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/ingest"
	"github.com/kraklabs/cie/pkg/registry"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// Pipeline indexes one file (or a batch of files) into the Store and
// SearchBackend. It holds no long-lived transaction state; the caller
// (SyncEngine or Watcher) owns opening and closing the Cache around the
// Pipeline's lifetime, per the "EmbeddingCache is opened per-sync"
// resource-ownership rule.
type Pipeline struct {
	Store     store.Store
	Search    search.Backend
	Cache     embed.Cache
	Embedder  Embedder
	Extractor *ingest.Extractor
	Registry  *registry.Registry
	Logger    *slog.Logger
}

// New builds a Pipeline from its already-constructed dependencies.
func New(st store.Store, sb search.Backend, cache embed.Cache, embedder Embedder, extractor *ingest.Extractor, reg *registry.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Store: st, Search: sb, Cache: cache, Embedder: embedder, Extractor: extractor, Registry: reg, Logger: logger}
}

// FileInput is one source file to (re-)index.
type FileInput struct {
	Path    string
	Package string
	Module  string
	Source  []byte
}

// FileResult summarizes one indexFile call. Errors holds non-fatal
// per-node embedding failures; a hard extraction/store failure is
// returned as an error from IndexFile instead.
type FileResult struct {
	Path       string
	NodesAdded int
	EdgesAdded int
	Errors     []string
}

// ProjectResult aggregates indexProject across every file it processed.
type ProjectResult struct {
	Files []FileResult
}

// IndexFile runs the five-step sequence against one file: remove any
// prior state for path, extract its nodes and edges, embed every
// non-File node with progressive fallback, and write everything to the
// Store and SearchBackend.
//
// Node embedding happens before the single WriteNodes call (rather than
// after, as spec.md's step numbering literally reads) because the Store
// interface has no separate "patch node properties" call: contentHash
// and snippet must already be set on a Node before it is written. The
// contract this preserves — RemoveFile happens-before any write, which
// happens-before any SearchBackend add — is unaffected.
func (p *Pipeline) IndexFile(ctx context.Context, in FileInput) (*FileResult, error) {
	res := &FileResult{Path: in.Path}

	if err := p.Store.RemoveFile(ctx, in.Path); err != nil {
		return nil, fmt.Errorf("pipeline: remove file %s: %w", in.Path, err)
	}
	if err := p.Search.RemoveByFile(ctx, in.Path); err != nil {
		return nil, fmt.Errorf("pipeline: remove search docs for %s: %w", in.Path, err)
	}

	extracted, err := p.Extractor.Extract(ctx, ingest.Request{
		FilePath: in.Path, Package: in.Package, Module: in.Module, Registry: p.Registry,
	}, in.Source)
	if err != nil {
		return nil, fmt.Errorf("pipeline: extract %s: %w", in.Path, err)
	}

	nodes := make([]*graph.Node, len(extracted.Nodes))
	var docs []search.Document
	for i, n := range extracted.Nodes {
		if n.Type != graph.NodeFile {
			snippet := sliceSnippet(in.Source, n.StartLine, n.EndLine)
			vec, hash, embedErr := embedWithFallback(ctx, p.Embedder, p.Cache, string(n.Type), n.Name, n.FilePath, snippet)
			if embedErr != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %v", n.FilePath, n.Name, embedErr))
			} else {
				if n.Properties == nil {
					n.Properties = make(map[string]any, 2)
				}
				n.Properties["contentHash"] = hash
				n.Properties["snippet"] = snippet
				prepared := search.PreparedSnippet(string(n.Type), n.Name, n.FilePath, snippet)
				docs = append(docs, search.Document{
					ID: n.ID, Symbol: n.Name, File: n.FilePath, NodeType: string(n.Type),
					Content: search.BuildContent(n.Name, prepared), ContentHash: hash, Embedding: vec,
				})
			}
		}
		nodes[i] = &n
	}

	if err := p.Store.WriteNodes(ctx, nodes); err != nil {
		return nil, fmt.Errorf("pipeline: write nodes for %s: %w", in.Path, err)
	}

	edges := make([]*graph.Edge, len(extracted.Edges))
	for i, e := range extracted.Edges {
		edges[i] = &e
	}
	if err := p.Store.WriteEdges(ctx, edges); err != nil {
		return nil, fmt.Errorf("pipeline: write edges for %s: %w", in.Path, err)
	}

	if len(docs) > 0 {
		if err := p.Search.Add(ctx, docs); err != nil {
			return nil, fmt.Errorf("pipeline: add search docs for %s: %w", in.Path, err)
		}
	}

	res.NodesAdded = len(nodes)
	res.EdgesAdded = len(edges)
	return res, nil
}

// IndexProject runs IndexFile over every file in files, in order,
// collecting per-file errors rather than aborting: one file's extraction
// or store failure never stops the rest of the project from indexing.
func (p *Pipeline) IndexProject(ctx context.Context, files []FileInput) *ProjectResult {
	pr := &ProjectResult{Files: make([]FileResult, 0, len(files))}
	for _, f := range files {
		res, err := p.IndexFile(ctx, f)
		if err != nil {
			p.Logger.Warn("pipeline.index_file.error", "path", f.Path, "err", err)
			pr.Files = append(pr.Files, FileResult{Path: f.Path, Errors: []string{err.Error()}})
			continue
		}
		pr.Files = append(pr.Files, *res)
	}
	return pr
}

// sliceSnippet extracts the 1-based inclusive [startLine, endLine] window
// of src as a string, clamping to the file's actual bounds.
func sliceSnippet(src []byte, startLine, endLine int) string {
	lines := strings.Split(string(src), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine || startLine > len(lines) {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

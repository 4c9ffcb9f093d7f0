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

// Package store persists the code graph: nodes, edges, schema version, and
// the recursive traversal queries the query engine builds on top of.
//
// The physical engine is a single embedded SQLite database
// (modernc.org/sqlite, pure Go, no cgo) opened in WAL mode so that
// traversal reads never block while the watcher's single writer goroutine
// is mid-transaction. Edges are written without a physical foreign key to
// nodes: packages are processed in arbitrary order, so an edge may
// legitimately point at a node that has not been written yet. Readers
// filter these out with an inner join at query time.
package store

import (
	"context"

	"github.com/kraklabs/cie/pkg/graph"
)

// CurrentSchemaVersion is the schema version this build of the engine
// writes and expects. Bump it whenever the nodes/edges table shape
// changes in a way that requires a reindex.
const CurrentSchemaVersion = 1

// EdgeSet is a set of edge types considered during a traversal.
type EdgeSet map[graph.EdgeType]bool

// NewEdgeSet builds an EdgeSet from a list of edge types.
func NewEdgeSet(types ...graph.EdgeType) EdgeSet {
	s := make(EdgeSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

// WriteError records a single file's failed ingestion transaction. The
// Store never exposes partial state for a failed file: the transaction is
// rolled back in full and the caller is told why.
type WriteError struct {
	File    string
	Message string
}

// NodeFilter selects nodes for queryNodes.
type NodeFilter struct {
	Types       []graph.NodeType
	FilePath    string
	Name        string
	NamePattern string
}

// PathResult is the material of a single path between two nodes: the node
// sequence and the edge used for each hop (len(Edges) == len(Nodes)-1).
type PathResult struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

// Reachability is the result of a bounded outgoing/incoming traversal: the
// set of nodes reached (including the start node) and the edges that were
// actually walked to reach them.
type Reachability struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

// Store is the contract the rest of the engine programs against. The
// concrete implementation in this package (SQLiteStore) is the only one
// shipped, but the interface keeps the query/pipeline/sync layers free of
// SQL so a different embedded engine could be substituted.
type Store interface {
	// RemoveFile deletes every node with FilePath == path and every edge
	// incident to those nodes, in one transaction.
	RemoveFile(ctx context.Context, path string) error

	// WriteNodes upserts nodes by id in a single transaction.
	WriteNodes(ctx context.Context, nodes []*graph.Node) error

	// WriteEdges inserts edges, ignoring duplicates, aggregating
	// CallCount for repeated CALLS edges between the same pair.
	WriteEdges(ctx context.Context, edges []*graph.Edge) error

	// QueryNodes returns nodes matching filter.
	QueryNodes(ctx context.Context, filter NodeFilter) ([]*graph.Node, error)

	// GetNode returns a single node by id, or nil if absent.
	GetNode(ctx context.Context, id string) (*graph.Node, error)

	// ResolveSymbol finds node ids for a (filePath, symbolName) pair,
	// tolerating qualified names like "Class.method".
	ResolveSymbol(ctx context.Context, filePath, symbol string) ([]*graph.Node, error)

	// OutgoingReachability walks edges of the given types forward from
	// src, up to maxDepth hops.
	OutgoingReachability(ctx context.Context, src string, edgeTypes EdgeSet, maxDepth int) (*Reachability, error)

	// IncomingReachability walks edges of the given types backward from
	// dst, up to maxDepth hops.
	IncomingReachability(ctx context.Context, dst string, edgeTypes EdgeSet, maxDepth int) (*Reachability, error)

	// ShortestPath finds a bidirectional shortest path between src and
	// dst, trying src->dst first and then dst->src (direction-agnostic).
	ShortestPath(ctx context.Context, src, dst string, edgeTypes EdgeSet, maxDepth int) (*PathResult, error)

	// BatchGetDocMeta returns (contentHash, snippet) for a batch of node
	// ids, for cosine backfill. Missing ids are simply absent from the
	// result map.
	BatchGetDocMeta(ctx context.Context, ids []string) (map[string]DocMeta, error)

	// SchemaVersion returns the persisted schema version.
	SchemaVersion(ctx context.Context) (int, error)

	Close() error
}

// DocMeta is the (contentHash, snippet) pair the cosine backfill step
// fetches from the store for a BM25-only hit.
type DocMeta struct {
	ContentHash string
	Snippet     string
}

// ErrSchemaTooNew is returned by OpenSQLite when the on-disk schema
// version is newer than this build understands.
type ErrSchemaTooNew struct {
	DBVersion   int
	CodeVersion int
}

func (e *ErrSchemaTooNew) Error() string {
	return "store: on-disk schema version is newer than this build supports"
}

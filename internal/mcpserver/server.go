// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcpserver exposes pkg/query's three traversal operations as MCP
// tools over stdio JSON-RPC, so an AI coding agent can call dependencies_of,
// dependents_of, and paths_between without knowing the on-disk query engine
// exists.
package mcpserver

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kraklabs/cie/pkg/format"
	"github.com/kraklabs/cie/pkg/query"
	"github.com/kraklabs/cie/pkg/store"
)

// Server is the MCP server for the code intelligence engine. It bridges AI
// clients (Claude Code, Cursor, etc) to a *query.Engine over stdio.
type Server struct {
	mcp    *mcp.Server
	engine *query.Engine
	root   string
	logger *slog.Logger
}

// NewServer builds a Server and registers its tools. root is the absolute
// project root; Store.ResolveSymbol indexes files by the same absolute
// paths pkg/sync walks, so file paths tool callers supply relative to the
// project (the natural way an agent refers to a file) are joined against
// root before being passed to the query engine. version is reported in the
// MCP implementation handshake.
func NewServer(engine *query.Engine, root string, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, root: root, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "cie", Version: version}, nil)
	s.registerTools()
	return s
}

// resolvePath joins a caller-supplied file path against the project root
// unless it is already absolute.
func (s *Server) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.root, p)
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcpserver.start", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcpserver.stopped", "err", err)
		return err
	}
	s.logger.Info("mcpserver.stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "dependencies_of",
		Description: "List what a function, method, or type depends on: everything it calls, " +
			"references, extends, implements, or uses as a type, up to a bounded number of hops. " +
			"Use this before modifying a symbol to see what would be affected by changing its contract.",
	}, s.handleDependenciesOf)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "dependents_of",
		Description: "List what calls, references, extends, implements, or uses a function, " +
			"method, or type, up to a bounded number of hops. Use this before deleting or " +
			"changing a symbol's signature to see what would break.",
	}, s.handleDependentsOf)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "paths_between",
		Description: "Find the shortest dependency chain connecting two symbols, in either direction. Use this to understand how two parts of the codebase are related.",
	}, s.handlePathsBetween)
}

// SymbolInput identifies a (file, symbol) pair and an optional topic to
// prune the traversal to.
type SymbolInput struct {
	FilePath string `json:"file_path" jsonschema:"path to the file defining the symbol, relative to the project root"`
	Symbol   string `json:"symbol" jsonschema:"name of the function, method, or type to start from"`
	Topic    string `json:"topic,omitempty" jsonschema:"optional: only keep chains that lead to a node topically relevant to this text, via hybrid search"`
}

// TraversalOutput is the rendered result of dependencies_of/dependents_of.
type TraversalOutput struct {
	Rendered  string `json:"rendered" jsonschema:"human-readable rendered call graph with source snippets"`
	NodeCount int    `json:"node_count" jsonschema:"number of nodes reached, including the start node"`
	EdgeCount int    `json:"edge_count" jsonschema:"number of edges walked to reach them"`
}

func (s *Server) handleDependenciesOf(ctx context.Context, _ *mcp.CallToolRequest, in SymbolInput) (*mcp.CallToolResult, TraversalOutput, error) {
	ref := query.SymbolRef{FilePath: s.resolvePath(in.FilePath), Symbol: in.Symbol}
	reach, err := s.engine.DependenciesOf(ctx, ref, query.Options{Topic: in.Topic})
	if err != nil {
		return nil, TraversalOutput{}, MapError(err)
	}
	return nil, TraversalOutput{
		Rendered:  format.Reachability(reach, startNodeID(reach, ref)),
		NodeCount: len(reach.Nodes),
		EdgeCount: len(reach.Edges),
	}, nil
}

func (s *Server) handleDependentsOf(ctx context.Context, _ *mcp.CallToolRequest, in SymbolInput) (*mcp.CallToolResult, TraversalOutput, error) {
	ref := query.SymbolRef{FilePath: s.resolvePath(in.FilePath), Symbol: in.Symbol}
	reach, err := s.engine.DependentsOf(ctx, ref, query.Options{Topic: in.Topic})
	if err != nil {
		return nil, TraversalOutput{}, MapError(err)
	}
	return nil, TraversalOutput{
		Rendered:  format.Reachability(reach, startNodeID(reach, ref)),
		NodeCount: len(reach.Nodes),
		EdgeCount: len(reach.Edges),
	}, nil
}

// PathsBetweenInput identifies the two symbols to connect.
type PathsBetweenInput struct {
	FromFile   string `json:"from_file" jsonschema:"path to the file defining the source symbol"`
	FromSymbol string `json:"from_symbol" jsonschema:"name of the source symbol"`
	ToFile     string `json:"to_file" jsonschema:"path to the file defining the target symbol"`
	ToSymbol   string `json:"to_symbol" jsonschema:"name of the target symbol"`
}

// PathOutput is the rendered result of paths_between.
type PathOutput struct {
	Rendered string `json:"rendered" jsonschema:"human-readable rendered path with source snippets"`
	Found    bool   `json:"found" jsonschema:"whether a path was found"`
}

func (s *Server) handlePathsBetween(ctx context.Context, _ *mcp.CallToolRequest, in PathsBetweenInput) (*mcp.CallToolResult, PathOutput, error) {
	from := query.SymbolRef{FilePath: s.resolvePath(in.FromFile), Symbol: in.FromSymbol}
	to := query.SymbolRef{FilePath: s.resolvePath(in.ToFile), Symbol: in.ToSymbol}
	path, err := s.engine.PathsBetween(ctx, from, to)
	if err != nil {
		return nil, PathOutput{}, MapError(err)
	}
	if len(path.Nodes) == 0 {
		return nil, PathOutput{Found: false}, nil
	}
	return nil, PathOutput{Rendered: format.Path(path), Found: true}, nil
}

// startNodeID recovers the id of the node ref resolved to. Engine doesn't
// return the start node's id directly, but it's always present in
// reach.Nodes (the traversal includes the start node itself), identifiable
// by the same (file, symbol) pair the caller queried with.
func startNodeID(reach *store.Reachability, ref query.SymbolRef) string {
	if reach == nil {
		return ""
	}
	for _, n := range reach.Nodes {
		if n.FilePath == ref.FilePath && n.Name == ref.Symbol {
			return n.ID
		}
	}
	return ""
}

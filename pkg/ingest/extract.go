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

package ingest

import (
	"context"
	"fmt"
	"path"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/graphid"
	"github.com/kraklabs/cie/pkg/registry"
)

// Request is the extraction context for one file: its path, the
// labels it should carry, and the project-wide registry used to
// resolve cross-file import specifiers to target node ids.
type Request struct {
	FilePath string
	Package  string
	Module   string
	Registry *registry.Registry
}

// Result is one file's extracted nodes and edges.
type Result struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// Extractor walks a parsed source file and emits the graph it declares.
type Extractor struct {
	parser Parser
}

// NewExtractor builds an Extractor over the given Parser (normally the
// tsquery tree-sitter adapter covering Go, TypeScript, and TSX).
func NewExtractor(parser Parser) *Extractor {
	return &Extractor{parser: parser}
}

// Extract parses src and produces (nodes, edges) for req.FilePath, per
// the node/edge production rules: one File node, one node per
// declaration, CONTAINS from the file to every declaration, IMPORTS
// between files, CALLS/REFERENCES within bodies, EXTENDS/IMPLEMENTS for
// classes and interfaces, USES_TYPE/TAKES/RETURNS/HAS_PROPERTY for type
// signatures, and DERIVES_FROM/ALIAS_FOR for type aliases.
func (e *Extractor) Extract(ctx context.Context, req Request, src []byte) (*Result, error) {
	lang := LanguageForPath(req.FilePath)
	if lang == "" {
		return nil, fmt.Errorf("ingest: unsupported file extension: %s", req.FilePath)
	}

	tree, err := e.parser.Parse(ctx, req.FilePath, src)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("ingest: empty parse tree for %s", req.FilePath)
	}

	w := &walker{
		req:       req,
		src:       src,
		lang:      lang,
		result:    &Result{},
		importMap: make(map[string]string),
	}

	startRow, _ := root.StartPoint()
	endRow, _ := root.EndPoint()
	fileID := graphid.NodeID(req.FilePath, "")
	w.result.Nodes = append(w.result.Nodes, graph.Node{
		ID:        fileID,
		Type:      graph.NodeFile,
		Name:      path.Base(req.FilePath),
		Package:   req.Package,
		Module:    req.Module,
		FilePath:  req.FilePath,
		StartLine: int(startRow) + 1,
		EndLine:   int(endRow) + 1,
		Exported:  true,
	})

	imports := w.collectImports(root)
	w.buildImportMapFromImports(imports)

	// Declarations are collected before bodies are walked for calls, so
	// every local declaration is in the ImportMap regardless of the
	// order functions reference each other in source.
	w.collectDeclarations(root, nil)

	for target, grouped := range w.groupImportsByTarget(imports) {
		w.result.Edges = append(w.result.Edges, graph.Edge{
			Source: fileID, Target: target, Type: graph.EdgeImports,
			IsTypeOnly:      grouped.allTypeOnly,
			ImportedSymbols: grouped.symbols,
		})
	}

	for _, decl := range w.decls {
		w.result.Edges = append(w.result.Edges, graph.Edge{Source: fileID, Target: decl.id, Type: graph.EdgeContains})
		w.walkBody(decl)
	}

	return w.result, nil
}

// declaration is one emitted Function/Class/Method/Interface/TypeAlias/
// Variable/Property node, carrying enough of its syntax node to walk
// its body afterward for calls, references, and type-signature edges.
type declaration struct {
	id       string
	name     string
	nodeType graph.NodeType
	owner    string // node id of the owning class/type for methods/properties, "" for top-level
	body     SyntaxNode
	sig      SyntaxNode // parameter_list / type node, for TAKES/RETURNS/USES_TYPE
	retType  SyntaxNode
}

type walker struct {
	req       Request
	src       []byte
	lang      Language
	result    *Result
	decls     []declaration
	importMap map[string]string // local name -> resolved node id (or file id fallback)
}

func (w *walker) text(n SyntaxNode) string {
	if n == nil {
		return ""
	}
	return string(w.src[n.StartByte():n.EndByte()])
}

func (w *walker) span(n SyntaxNode) (start, end int) {
	sr, _ := n.StartPoint()
	er, _ := n.EndPoint()
	return int(sr) + 1, int(er) + 1
}

func (w *walker) addDecl(d declaration, nodeType graph.NodeType, exported bool, properties map[string]any) {
	start, end := w.span(d.body)
	w.result.Nodes = append(w.result.Nodes, graph.Node{
		ID: d.id, Type: nodeType, Name: d.name, Package: w.req.Package, Module: w.req.Module,
		FilePath: w.req.FilePath, StartLine: start, EndLine: end, Exported: exported, Properties: properties,
	})
	w.decls = append(w.decls, d)
	// Local declarations are addressable by their bare name, approximating
	// unqualified in-scope resolution; later declarations/imports win on
	// name collision, an accepted simplification (see DESIGN.md).
	w.importMap[d.name] = d.id
}

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
	"strings"

	"github.com/kraklabs/cie/pkg/graphid"
)

// importDecl is one resolved import statement: the specifier as
// written, the local names it binds (empty for a bare `import "./x"`),
// and whether it's type-only (TypeScript `import type`).
type importDecl struct {
	specifier  string
	names      []string // local name -> imported symbol name, same index
	symbols    []string
	isTypeOnly bool
	isDefault  bool
	isWildcard bool
}

func (w *walker) collectImports(root SyntaxNode) []importDecl {
	var out []importDecl
	for i := 0; i < root.ChildCount(); i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		switch w.lang {
		case LanguageGo:
			if n.Type() == "import_declaration" {
				out = append(out, w.collectGoImportDecl(n)...)
			}
		case LanguageTypeScript, LanguageTSX:
			if n.Type() == "import_statement" {
				if d, ok := w.collectTSImportStatement(n); ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func (w *walker) collectGoImportDecl(n SyntaxNode) []importDecl {
	var out []importDecl
	for i := 0; i < n.ChildCount(); i++ {
		spec := n.Child(i)
		if spec == nil || spec.Type() != "import_spec" {
			continue
		}
		pathNode := spec.ChildByFieldName("path")
		specifier := strings.Trim(w.text(pathNode), `"`)
		if specifier == "" {
			continue
		}
		out = append(out, importDecl{specifier: specifier})
	}
	return out
}

// collectTSImportStatement extracts one `import ... from "specifier"`
// statement. Namespace imports (`import * as ns`) bind no individually
// resolvable local names: ns-qualified member access can't be resolved
// to a specific exported symbol without a second read of the target
// file's own exports, so such references stay unresolved — an accepted
// limitation (see DESIGN.md).
func (w *walker) collectTSImportStatement(n SyntaxNode) (importDecl, bool) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return importDecl{}, false
	}
	specifier := strings.Trim(w.text(source), `"'`)
	if specifier == "" {
		return importDecl{}, false
	}

	d := importDecl{specifier: specifier}
	for i := 0; i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.Type() == "type" {
			d.isTypeOnly = true
		}
		if c.Type() == "import_clause" {
			w.collectTSImportClause(c, &d)
		}
	}
	return d, true
}

func (w *walker) collectTSImportClause(clause SyntaxNode, d *importDecl) {
	for i := 0; i < clause.ChildCount(); i++ {
		c := clause.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "identifier":
			// bare default import: `import Foo from "./x"`
			d.isDefault = true
			d.names = append(d.names, w.text(c))
			d.symbols = append(d.symbols, "default")
		case "namespace_import":
			d.isWildcard = true
		case "named_imports":
			for j := 0; j < c.ChildCount(); j++ {
				spec := c.Child(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				imported := w.text(spec.ChildByFieldName("name"))
				local := imported
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = w.text(alias)
				}
				if imported == "" {
					continue
				}
				d.names = append(d.names, local)
				d.symbols = append(d.symbols, imported)
			}
		}
	}
}

// buildImportMapFromImports resolves every import's specifier through
// the registry (following barrels for named imports) and binds each
// local name to the resolved node id, so later declaration/body walking
// can look up cross-file targets by local name.
func (w *walker) buildImportMapFromImports(imports []importDecl) {
	if w.req.Registry == nil {
		return
	}
	for _, d := range imports {
		target, ok := w.req.Registry.Resolve(w.req.FilePath, d.specifier)
		if !ok {
			continue // external dependency: no edge, no bindings
		}
		for i, local := range d.names {
			symbol := d.symbols[i]
			if symbol == "default" {
				continue // can't know the default export's real name
			}
			resolvedFile := target
			if hop, ok := w.req.Registry.FollowBarrel(w.req.FilePath, d.specifier, symbol); ok {
				resolvedFile = hop
			}
			w.importMap[local] = graphid.NodeID(resolvedFile, symbol)
		}
	}
}

type groupedImport struct {
	allTypeOnly bool
	symbols     []string
}

// groupImportsByTarget merges every import statement naming the same
// resolved target file into a single IMPORTS edge, matching the edges
// table's (source, target, type) primary key.
func (w *walker) groupImportsByTarget(imports []importDecl) map[string]groupedImport {
	out := make(map[string]groupedImport)
	if w.req.Registry == nil {
		return out
	}
	for _, d := range imports {
		target, ok := w.req.Registry.Resolve(w.req.FilePath, d.specifier)
		if !ok {
			continue
		}
		g, ok := out[target]
		if !ok {
			g = groupedImport{allTypeOnly: true}
		}
		if !d.isTypeOnly {
			g.allTypeOnly = false
		}
		g.symbols = append(g.symbols, d.symbols...)
		out[target] = g
	}
	return out
}

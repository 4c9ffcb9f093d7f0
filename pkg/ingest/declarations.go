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
	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/graphid"
)

// collectDeclarations walks the tree once, emitting a node for every
// top-level and nested declaration of an enumerated kind. owners is the
// qualified-name chain of enclosing classes/namespaces.
func (w *walker) collectDeclarations(n SyntaxNode, owners []string) {
	if n == nil {
		return
	}

	switch w.lang {
	case LanguageGo:
		w.collectGoDeclaration(n, owners)
	case LanguageTypeScript, LanguageTSX:
		w.collectTSDeclaration(n, owners)
		switch n.Type() {
		case "class_declaration", "function_declaration", "arrow_function", "function_expression":
			// Class members were already walked by collectTSDeclaration, and
			// declarations inside function bodies are locals.
			return
		}
	}

	for i := 0; i < n.ChildCount(); i++ {
		w.collectDeclarations(n.Child(i), owners)
	}
}

func (w *walker) collectTSDeclaration(n SyntaxNode, owners []string) {
	switch n.Type() {
	case "function_declaration":
		w.emitFunctionLike(n, owners, graph.NodeFunction)

	case "class_declaration":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		d := declaration{id: id, name: name, nodeType: graph.NodeClass, body: n}
		w.addDecl(d, graph.NodeClass, isExportedTS(n), nil)
		w.emitHeritage(n, id, w.text(n))

		childOwners := append(append([]string{}, owners...), name)
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < body.ChildCount(); i++ {
				w.collectClassMember(body.Child(i), childOwners, id)
			}
		}
		// Members are walked here directly (not by the generic recursive
		// descent) so that their owner qualification is correct; skip
		// re-descending into the class body from collectDeclarations.

	case "interface_declaration":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		d := declaration{id: id, name: name, nodeType: graph.NodeInterface, body: n}
		w.addDecl(d, graph.NodeInterface, isExportedTS(n), nil)
		w.emitHeritage(n, id, w.text(n))

	case "type_alias_declaration":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		w.addDecl(declaration{id: id, name: name, nodeType: graph.NodeTypeAlias, body: n}, graph.NodeTypeAlias, isExportedTS(n), nil)
		if value := n.ChildByFieldName("value"); value != nil {
			w.emitTypeAliasEdges(id, value)
		}

	case "variable_declarator":
		if len(owners) > 0 {
			return // nested locals aren't enumerated declarations
		}
		name := w.text(n.ChildByFieldName("name"))
		value := n.ChildByFieldName("value")
		if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression") {
			w.emitFunctionLikeNamed(value, name, owners, graph.NodeFunction)
			return
		}
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		w.addDecl(declaration{id: id, name: name, nodeType: graph.NodeVariable, body: n}, graph.NodeVariable, true, nil)
		if typeAnn := n.ChildByFieldName("type"); typeAnn != nil {
			w.emitUsesType(id, typeAnn, graph.ContextVariable)
		}
	}
}

// collectClassMember handles method_definition/public_field_definition
// nodes directly rather than via the generic recursive walk, since they
// need the owning class's qualified name.
func (w *walker) collectClassMember(n SyntaxNode, owners []string, classID string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "method_definition":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		params := n.ChildByFieldName("parameters")
		ret := n.ChildByFieldName("return_type")
		body := n.ChildByFieldName("body")
		bodyNode := body
		if bodyNode == nil {
			bodyNode = n
		}
		d := declaration{id: id, name: name, nodeType: graph.NodeMethod, owner: classID, body: n, sig: params, retType: ret}
		w.addDecl(d, graph.NodeMethod, isExportedTS(n), nil)
		w.result.Edges = append(w.result.Edges, graph.Edge{Source: classID, Target: id, Type: graph.EdgeHasProperty})
		w.emitParamAndReturnTypes(d)
		d.body = bodyNode
		w.decls[len(w.decls)-1] = d

	case "public_field_definition":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		w.addDecl(declaration{id: id, name: name, nodeType: graph.NodeProperty, owner: classID, body: n}, graph.NodeProperty, isExportedTS(n), nil)
		w.result.Edges = append(w.result.Edges, graph.Edge{Source: classID, Target: id, Type: graph.EdgeHasProperty})
		if typeAnn := n.ChildByFieldName("type"); typeAnn != nil {
			w.emitUsesType(id, typeAnn, graph.ContextProperty)
		}
	}
}

func (w *walker) emitFunctionLike(n SyntaxNode, owners []string, nodeType graph.NodeType) {
	name := w.text(n.ChildByFieldName("name"))
	w.emitFunctionLikeNamed(n, name, owners, nodeType)
}

func (w *walker) emitFunctionLikeNamed(n SyntaxNode, name string, owners []string, nodeType graph.NodeType) {
	id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
	params := n.ChildByFieldName("parameters")
	ret := n.ChildByFieldName("return_type")
	d := declaration{id: id, name: name, nodeType: nodeType, body: n, sig: params, retType: ret}
	w.addDecl(d, nodeType, isExportedTS(n), nil)
	w.emitParamAndReturnTypes(d)
}

// emitParamAndReturnTypes emits TAKES for each typed parameter and
// RETURNS/USES_TYPE(return) for the declared return type.
func (w *walker) emitParamAndReturnTypes(d declaration) {
	if d.sig != nil {
		for i := 0; i < d.sig.ChildCount(); i++ {
			p := d.sig.Child(i)
			if p == nil {
				continue
			}
			typeAnn := p.ChildByFieldName("type")
			if typeAnn == nil {
				continue
			}
			if target := w.resolveTypeRef(typeAnn); target != "" {
				w.result.Edges = append(w.result.Edges, graph.Edge{Source: d.id, Target: target, Type: graph.EdgeTakes})
			}
			w.emitUsesType(d.id, typeAnn, graph.ContextParameter)
		}
	}
	if d.retType != nil {
		if target := w.resolveTypeRef(d.retType); target != "" {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: d.id, Target: target, Type: graph.EdgeReturns})
		}
		w.emitUsesType(d.id, d.retType, graph.ContextReturn)
	}
}

func (w *walker) emitUsesType(sourceID string, typeNode SyntaxNode, context graph.UseContext) {
	target := w.resolveTypeRef(typeNode)
	if target == "" {
		return
	}
	w.result.Edges = append(w.result.Edges, graph.Edge{
		Source: sourceID, Target: target, Type: graph.EdgeUsesType, Context: string(context),
	})
}

// resolveTypeRef extracts the first referenced type identifier in a
// type annotation node and resolves it through the ImportMap. Returns
// "" for unresolvable or built-in-scalar references.
func (w *walker) resolveTypeRef(typeNode SyntaxNode) string {
	name := firstTypeIdentifier(typeNode, w)
	if name == "" || graph.BuiltinScalars[name] {
		return ""
	}
	return w.importMap[name]
}

// firstTypeIdentifier walks a type annotation down to its first
// type_identifier/identifier leaf, unwrapping the leading ":" token and
// single-level wrappers (arrays, generics) to reach the base reference.
func firstTypeIdentifier(n SyntaxNode, w *walker) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "type_identifier", "identifier", "predefined_type":
		return w.text(n)
	}
	for i := 0; i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case ":", "[", "]", "<", ">", "|", "&":
			continue
		}
		if name := firstTypeIdentifier(c, w); name != "" {
			return name
		}
	}
	return ""
}

func (w *walker) emitHeritage(n SyntaxNode, sourceID string, fullText string) {
	for i := 0; i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.Type() != "class_heritage" {
			continue
		}
		for j := 0; j < c.ChildCount(); j++ {
			clause := c.Child(j)
			if clause == nil {
				continue
			}
			edgeType := graph.EdgeImplements
			if clause.Type() == "extends_clause" {
				edgeType = graph.EdgeExtends
			}
			for k := 0; k < clause.ChildCount(); k++ {
				ref := clause.Child(k)
				if ref == nil {
					continue
				}
				name := firstTypeIdentifier(ref, w)
				if name == "" {
					continue
				}
				if target, ok := w.importMap[name]; ok {
					w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: edgeType})
				}
			}
		}
	}
}

func isExportedTS(n SyntaxNode) bool {
	// tree-sitter-typescript wraps an exported declaration in an
	// export_statement parent; SyntaxNode has no Parent() accessor (kept
	// minimal per the Parser interface), so exported-ness is approximated
	// as true for all top-level declarations. Non-exported locals are
	// filtered out at the ProjectRegistry/IndexPipeline boundary instead
	// (declaration-only/node_modules files are excluded from sync
	// entirely). Documented limitation; see DESIGN.md.
	return true
}

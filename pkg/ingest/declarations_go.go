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

// collectGoDeclaration handles the Go grammar's node shapes: Go has no
// Class kind, so struct types are emitted as Class (the closest
// enumerated kind) and method receivers become the owner, grounded on
// the teacher's own struct-as-record, method-by-receiver model
// (parser_go.go's extractReceiverType/extractGoMethodDeclaration).
func (w *walker) collectGoDeclaration(n SyntaxNode, owners []string) {
	switch n.Type() {
	case "function_declaration":
		name := w.text(n.ChildByFieldName("name"))
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))
		params := n.ChildByFieldName("parameters")
		ret := n.ChildByFieldName("result")
		body := n.ChildByFieldName("body")
		bodyNode := body
		if bodyNode == nil {
			bodyNode = n
		}
		d := declaration{id: id, name: name, nodeType: graph.NodeFunction, body: bodyNode, sig: params, retType: ret}
		w.addDecl(d, graph.NodeFunction, isExportedGo(name), nil)
		w.emitParamAndReturnTypes(d)

	case "method_declaration":
		name := w.text(n.ChildByFieldName("name"))
		receiverType := goReceiverTypeName(n, w)
		ownerChain := owners
		ownerID := ""
		if receiverType != "" {
			ownerChain = append(append([]string{}, owners...), receiverType)
			ownerID = graphid.NodeID(w.req.FilePath, receiverType)
		}
		id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(ownerChain, name))
		params := n.ChildByFieldName("parameters")
		ret := n.ChildByFieldName("result")
		body := n.ChildByFieldName("body")
		bodyNode := body
		if bodyNode == nil {
			bodyNode = n
		}
		d := declaration{id: id, name: name, nodeType: graph.NodeMethod, owner: ownerID, body: bodyNode, sig: params, retType: ret}
		w.addDecl(d, graph.NodeMethod, isExportedGo(name), nil)
		w.emitParamAndReturnTypes(d)
		if ownerID != "" {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: ownerID, Target: id, Type: graph.EdgeHasProperty})
		}

	case "type_declaration":
		for i := 0; i < n.ChildCount(); i++ {
			w.collectGoTypeSpec(n.Child(i), owners)
		}
	}
}

func (w *walker) collectGoTypeSpec(n SyntaxNode, owners []string) {
	if n == nil || n.Type() != "type_spec" {
		return
	}
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	id := graphid.NodeID(w.req.FilePath, graphid.QualifiedName(owners, name))

	typeNode := n.ChildByFieldName("type")
	nodeType := graph.NodeClass
	if typeNode != nil && typeNode.Type() == "interface_type" {
		nodeType = graph.NodeInterface
	}
	w.addDecl(declaration{id: id, name: name, nodeType: nodeType, body: n}, nodeType, isExportedGo(name), nil)

	if typeNode != nil && typeNode.Type() == "struct_type" {
		w.collectGoStructFields(typeNode, id)
	}
}

func (w *walker) collectGoStructFields(structType SyntaxNode, ownerID string) {
	fieldList := structType.ChildByFieldName("body")
	if fieldList == nil {
		return
	}
	for i := 0; i < fieldList.ChildCount(); i++ {
		decl := fieldList.Child(i)
		if decl == nil || decl.Type() != "field_declaration" {
			continue
		}
		typeAnn := decl.ChildByFieldName("type")
		name := w.text(decl.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		propID := ownerID + "." + name
		w.result.Nodes = append(w.result.Nodes, graph.Node{
			ID: propID, Type: graph.NodeProperty, Name: name, Package: w.req.Package,
			FilePath: w.req.FilePath, Exported: isExportedGo(name),
		})
		w.result.Edges = append(w.result.Edges, graph.Edge{Source: ownerID, Target: propID, Type: graph.EdgeHasProperty})
		if typeAnn != nil {
			w.emitUsesType(propID, typeAnn, graph.ContextProperty)
		}
	}
}

// goReceiverTypeName extracts the base type name off a method's
// receiver parameter list, stripping the leading "*" for pointer
// receivers.
func goReceiverTypeName(methodDecl SyntaxNode, w *walker) string {
	recv := methodDecl.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < recv.ChildCount(); i++ {
		param := recv.Child(i)
		if param == nil || param.Type() != "parameter_declaration" {
			continue
		}
		typeAnn := param.ChildByFieldName("type")
		return firstTypeIdentifier(typeAnn, w)
	}
	return ""
}

func isExportedGo(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

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
	"testing"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/registry"
)

const tsSrc = `import { Base } from "./base";

class Widget extends Base {
	render(): void {}
}

interface Shape {}
interface Sized {}

type Either = Shape | Sized;

type Alias = Shape;
`

func buildTSTree() *fakeTree {
	namedImports := node("named_imports").withChildren(
		node("import_specifier").withFields(map[string]*fakeNode{
			"name": leafAt(tsSrc, "identifier", "Base", 1),
		}),
	)
	importClause := node("import_clause").withChildren(namedImports)
	importStmt := node("import_statement").withFields(map[string]*fakeNode{
		"source": leafAt(tsSrc, "string", `"./base"`, 1),
	}).withChildren(importClause)

	classHeritage := node("class_heritage").withChildren(
		node("extends_clause").withChildren(leafAt(tsSrc, "type_identifier", "Base", 2)),
	)
	methodBody := node("statement_block")
	method := node("method_definition").withFields(map[string]*fakeNode{
		"name":       leafAt(tsSrc, "property_identifier", "render", 1),
		"parameters": node("formal_parameters"),
		"body":       methodBody,
	})
	classBody := node("class_body").withChildren(method)
	classDecl := node("class_declaration").withFields(map[string]*fakeNode{
		"name": leafAt(tsSrc, "type_identifier", "Widget", 1),
		"body": classBody,
	}).withChildren(classHeritage)

	shapeIface := node("interface_declaration").withFields(map[string]*fakeNode{
		"name": leafAt(tsSrc, "type_identifier", "Shape", 1),
	})
	sizedIface := node("interface_declaration").withFields(map[string]*fakeNode{
		"name": leafAt(tsSrc, "type_identifier", "Sized", 1),
	})

	eitherUnion := node("union_type").withChildren(
		leafAt(tsSrc, "type_identifier", "Shape", 2),
		node("|"),
		leafAt(tsSrc, "type_identifier", "Sized", 2),
	)
	eitherAlias := node("type_alias_declaration").withFields(map[string]*fakeNode{
		"name":  leafAt(tsSrc, "type_identifier", "Either", 1),
		"value": eitherUnion,
	})

	directAlias := node("type_alias_declaration").withFields(map[string]*fakeNode{
		"name":  leafAt(tsSrc, "type_identifier", "Alias", 1),
		"value": leafAt(tsSrc, "type_identifier", "Shape", 3),
	})

	root := node("program").withChildren(importStmt, classDecl, shapeIface, sizedIface, eitherAlias, directAlias)
	return &fakeTree{root: root}
}

func newTestRegistry() *registry.Registry {
	exists := func(p string) bool { return p == "base.ts" }
	readFile := func(p string) ([]byte, error) { return []byte(""), nil }
	return registry.New(nil, exists, readFile)
}

func TestExtractTSClassExtendsResolvesThroughImport(t *testing.T) {
	extractor := NewExtractor(&fakeParser{tree: buildTSTree()})
	req := Request{FilePath: "widget.ts", Package: "demo", Registry: newTestRegistry()}

	result, err := extractor.Extract(context.Background(), req, []byte(tsSrc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	fileID := "widget.ts"
	baseID := "base.ts:Base"
	widgetID := "widget.ts:Widget"

	if _, ok := findEdge(result.Edges, fileID, "base.ts", graph.EdgeImports); !ok {
		t.Errorf("expected IMPORTS edge to base.ts, edges=%+v", result.Edges)
	}
	if _, ok := findEdge(result.Edges, widgetID, baseID, graph.EdgeExtends); !ok {
		t.Errorf("expected EXTENDS edge from Widget to imported Base, edges=%+v", result.Edges)
	}

	renderID := "widget.ts:Widget.render"
	if _, ok := findEdge(result.Edges, widgetID, renderID, graph.EdgeHasProperty); !ok {
		t.Errorf("expected HAS_PROPERTY edge from Widget to render method, edges=%+v", result.Edges)
	}
}

func TestExtractTSTypeAliasUnionEmitsDerivesFrom(t *testing.T) {
	extractor := NewExtractor(&fakeParser{tree: buildTSTree()})
	req := Request{FilePath: "widget.ts", Package: "demo", Registry: newTestRegistry()}

	result, err := extractor.Extract(context.Background(), req, []byte(tsSrc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	eitherID := "widget.ts:Either"
	shapeID := "widget.ts:Shape"
	sizedID := "widget.ts:Sized"

	if _, ok := findEdge(result.Edges, eitherID, shapeID, graph.EdgeDerivesFrom); !ok {
		t.Errorf("expected DERIVES_FROM edge to Shape, edges=%+v", result.Edges)
	}
	if _, ok := findEdge(result.Edges, eitherID, sizedID, graph.EdgeDerivesFrom); !ok {
		t.Errorf("expected DERIVES_FROM edge to Sized, edges=%+v", result.Edges)
	}
}

func TestExtractTSTypeAliasDirectReferenceEmitsAliasFor(t *testing.T) {
	extractor := NewExtractor(&fakeParser{tree: buildTSTree()})
	req := Request{FilePath: "widget.ts", Package: "demo", Registry: newTestRegistry()}

	result, err := extractor.Extract(context.Background(), req, []byte(tsSrc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	aliasID := "widget.ts:Alias"
	shapeID := "widget.ts:Shape"
	if _, ok := findEdge(result.Edges, aliasID, shapeID, graph.EdgeAliasFor); !ok {
		t.Errorf("expected ALIAS_FOR edge to Shape, edges=%+v", result.Edges)
	}
}

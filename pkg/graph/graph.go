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

// Package graph defines the node and edge types shared by every layer of
// the code intelligence engine: the store, the extractor, the query engine,
// and the formatter.
package graph

// NodeType is the closed set of entity kinds the graph tracks.
type NodeType string

const (
	NodeFile      NodeType = "File"
	NodeFunction  NodeType = "Function"
	NodeClass     NodeType = "Class"
	NodeMethod    NodeType = "Method"
	NodeInterface NodeType = "Interface"
	NodeTypeAlias NodeType = "TypeAlias"
	NodeVariable  NodeType = "Variable"
	NodeProperty  NodeType = "Property"
	NodeNamespace NodeType = "Namespace"
)

// EdgeType is the closed set of directed relations between nodes.
type EdgeType string

const (
	EdgeContains       EdgeType = "CONTAINS"
	EdgeImports        EdgeType = "IMPORTS"
	EdgeCalls          EdgeType = "CALLS"
	EdgeReferences     EdgeType = "REFERENCES"
	EdgeExtends        EdgeType = "EXTENDS"
	EdgeImplements     EdgeType = "IMPLEMENTS"
	EdgeUsesType       EdgeType = "USES_TYPE"
	EdgeDerivesFrom    EdgeType = "DERIVES_FROM"
	EdgeAliasFor       EdgeType = "ALIAS_FOR"
	EdgeHasProperty    EdgeType = "HAS_PROPERTY"
	EdgeTakes          EdgeType = "TAKES"
	EdgeReturns        EdgeType = "RETURNS"
	EdgeReadsProperty  EdgeType = "READS_PROPERTY"
	EdgeWritesProperty EdgeType = "WRITES_PROPERTY"
)

// UseContext describes where a USES_TYPE edge originates from.
type UseContext string

const (
	ContextParameter UseContext = "parameter"
	ContextReturn    UseContext = "return"
	ContextVariable  UseContext = "variable"
	ContextProperty  UseContext = "property"
)

// Node is one entity of the code graph.
//
// Id is "<relative_file_path>:<qualified_name>" for every non-File node, and
// the bare relative file path for File nodes. QualifiedName joins owning
// namespace/class names with ".".
type Node struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Name       string         `json:"name"`
	Package    string         `json:"package,omitempty"`
	Module     string         `json:"module,omitempty"`
	FilePath   string         `json:"filePath"`
	StartLine  int            `json:"startLine"`
	EndLine    int            `json:"endLine"`
	Exported   bool           `json:"exported"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a directed typed relation between two node ids.
type Edge struct {
	Source          string   `json:"source"`
	Target          string   `json:"target"`
	Type            EdgeType `json:"type"`
	CallCount       int      `json:"callCount,omitempty"`
	IsTypeOnly      bool     `json:"isTypeOnly,omitempty"`
	ImportedSymbols []string `json:"importedSymbols,omitempty"`
	Context         string   `json:"context,omitempty"`
}

// FileNodeID returns the node id for a File node: just the normalized path.
func FileNodeID(filePath string) string {
	return filePath
}

// BuiltinScalars are skipped when building DERIVES_FROM edges for union and
// intersection type aliases.
var BuiltinScalars = map[string]bool{
	"string": true, "number": true, "boolean": true, "symbol": true,
	"bigint": true, "void": true, "never": true, "any": true,
	"unknown": true, "null": true, "undefined": true,
}

// BuiltinWrappers are generic type constructors whose type arguments are
// recursed into when building ALIAS_FOR/DERIVES_FROM edges; the edge is
// emitted against the first inner non-builtin reference instead of the
// wrapper itself.
var BuiltinWrappers = map[string]bool{
	"Array": true, "Promise": true, "Partial": true, "Required": true,
	"Readonly": true, "Pick": true, "Omit": true, "Record": true,
	"Exclude": true, "Extract": true, "NonNullable": true,
	"ReturnType": true, "Parameters": true, "InstanceType": true,
	"ConstructorParameters": true, "Map": true, "Set": true,
	"WeakMap": true, "WeakSet": true, "Date": true, "RegExp": true,
	"Error": true, "Function": true, "Object": true,
}

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

// emitTypeAliasEdges implements the `type X = Y` edge rule table:
// union/intersection members become DERIVES_FROM, a direct reference or
// array element becomes ALIAS_FOR, known generic wrappers recurse into
// their first non-builtin type argument, and anything else (tuples,
// object literals, conditional/mapped types, `ReturnType<typeof f>`)
// becomes ALIAS_FOR a synthetic node keyed by its printed form.
func (w *walker) emitTypeAliasEdges(sourceID string, value SyntaxNode) {
	switch value.Type() {
	case "union_type":
		w.emitUnionOrIntersectionMembers(sourceID, value, graph.EdgeDerivesFrom)
		return

	case "intersection_type":
		w.emitUnionOrIntersectionMembers(sourceID, value, graph.EdgeDerivesFrom)
		return

	case "array_type":
		elem := value.Child(0)
		if target := w.resolveAliasTarget(elem); target != "" {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: graph.EdgeAliasFor})
		}
		return

	case "generic_type":
		name := firstTypeIdentifier(value.ChildByFieldName("name"), w)
		if name == "" {
			name = firstTypeIdentifier(value, w)
		}
		if graph.BuiltinWrappers[name] {
			if args := value.ChildByFieldName("type_arguments"); args != nil {
				if target := w.firstNonBuiltinTypeArg(args); target != "" {
					w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: graph.EdgeAliasFor})
					return
				}
			}
			// A builtin wrapper with no resolvable inner reference still
			// needs an edge per the rule table: fall through to synthetic.
		} else if target := w.importMap[name]; target != "" {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: graph.EdgeAliasFor})
			return
		}

	case "type_identifier", "nested_type_identifier":
		name := w.text(value)
		if graph.BuiltinScalars[name] {
			return
		}
		if target, ok := w.importMap[name]; ok {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: graph.EdgeAliasFor})
			return
		}
	}

	// Synthetic fallback: literal object/tuple/conditional/mapped types,
	// or any reference that didn't resolve above.
	synthetic := graphid.SyntheticTypeID(w.req.FilePath, w.text(value))
	w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: synthetic, Type: graph.EdgeAliasFor})
}

func (w *walker) emitUnionOrIntersectionMembers(sourceID string, n SyntaxNode, edgeType graph.EdgeType) {
	for i := 0; i < n.ChildCount(); i++ {
		member := n.Child(i)
		if member == nil {
			continue
		}
		switch member.Type() {
		case "|", "&":
			continue
		case "literal_type", "undefined", "null":
			continue
		}
		if target := w.resolveAliasTarget(member); target != "" {
			w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: edgeType})
		}
	}
}

// resolveAliasTarget resolves one union/intersection member or array
// element to a node id, skipping built-in scalars.
func (w *walker) resolveAliasTarget(n SyntaxNode) string {
	if n == nil {
		return ""
	}
	name := firstTypeIdentifier(n, w)
	if name == "" || graph.BuiltinScalars[name] {
		return ""
	}
	return w.importMap[name]
}

// firstNonBuiltinTypeArg recurses into a builtin wrapper's type
// arguments and returns the first resolvable non-builtin reference.
func (w *walker) firstNonBuiltinTypeArg(typeArgs SyntaxNode) string {
	for i := 0; i < typeArgs.ChildCount(); i++ {
		arg := typeArgs.Child(i)
		if arg == nil {
			continue
		}
		switch arg.Type() {
		case "<", ">", ",":
			continue
		case "generic_type":
			innerName := firstTypeIdentifier(arg.ChildByFieldName("name"), w)
			if graph.BuiltinWrappers[innerName] {
				if innerArgs := arg.ChildByFieldName("type_arguments"); innerArgs != nil {
					if target := w.firstNonBuiltinTypeArg(innerArgs); target != "" {
						return target
					}
				}
				continue
			}
			if target := w.importMap[innerName]; target != "" {
				return target
			}
		default:
			if target := w.resolveAliasTarget(arg); target != "" {
				return target
			}
		}
	}
	return ""
}

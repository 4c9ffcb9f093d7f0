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

import "github.com/kraklabs/cie/pkg/graph"

// memberFields names the (object, property) field pair for a
// member-access node in each grammar: TypeScript's member_expression
// uses object/property, Go's selector_expression uses operand/field.
func (w *walker) memberFields() (objectField, propertyField, nodeType string) {
	if w.lang == LanguageGo {
		return "operand", "field", "selector_expression"
	}
	return "object", "property", "member_expression"
}

// walkBody walks one declaration's body, emitting CALLS (with
// callCount aggregation across repeated call sites in the same body),
// REFERENCES for the qualifying object of a member-call (e.g.
// `MathUtils.multiply()` emits CALLS to multiply and REFERENCES to
// MathUtils), and READS_PROPERTY/WRITES_PROPERTY for other member
// accesses.
func (w *walker) walkBody(d declaration) {
	if d.body == nil {
		return
	}
	callCounts := make(map[string]int)
	seenRefs := make(map[string]bool)
	objField, propField, memberType := w.memberFields()

	var visit func(n SyntaxNode, isAssignmentTarget bool)
	visit = func(n SyntaxNode, isAssignmentTarget bool) {
		if n == nil {
			return
		}

		switch n.Type() {
		case "call_expression":
			callee := n.ChildByFieldName("function")
			if callee == nil {
				callee = n.ChildByFieldName("operand") // Go: call_expression.operand
			}
			w.visitCallCallee(d.id, callee, objField, propField, memberType, callCounts, seenRefs)
			// Walk arguments for nested calls/member reads, but skip
			// re-visiting the callee itself as a plain member access.
			if args := n.ChildByFieldName("arguments"); args != nil {
				visit(args, false)
			}
			return

		case "assignment_expression", "assignment_statement":
			left := n.ChildByFieldName("left")
			right := n.ChildByFieldName("right")
			visit(left, true)
			visit(right, false)
			return

		case memberType:
			if !isAssignmentTarget {
				objField, propField := objField, propField
				w.emitPropertyAccess(d.id, n, objField, propField, graph.EdgeReadsProperty)
			} else {
				w.emitPropertyAccess(d.id, n, objField, propField, graph.EdgeWritesProperty)
			}
		}

		for i := 0; i < n.ChildCount(); i++ {
			visit(n.Child(i), false)
		}
	}
	visit(d.body, false)

	for target, count := range callCounts {
		w.result.Edges = append(w.result.Edges, graph.Edge{
			Source: d.id, Target: target, Type: graph.EdgeCalls, CallCount: count,
		})
	}
}

func (w *walker) visitCallCallee(callerID string, callee SyntaxNode, objField, propField, memberType string, callCounts map[string]int, seenRefs map[string]bool) {
	if callee == nil {
		return
	}
	switch callee.Type() {
	case "identifier":
		name := w.text(callee)
		if target, ok := w.importMap[name]; ok {
			callCounts[target]++
		}

	case memberType:
		objName := w.text(callee.ChildByFieldName(objField))
		propName := w.text(callee.ChildByFieldName(propField))
		if objTarget, ok := w.importMap[objName]; ok {
			key := callerID + "->" + objTarget
			if !seenRefs[key] {
				seenRefs[key] = true
				w.result.Edges = append(w.result.Edges, graph.Edge{Source: callerID, Target: objTarget, Type: graph.EdgeReferences})
			}
		}
		if propTarget, ok := w.importMap[propName]; ok {
			callCounts[propTarget]++
		}
	}
}

func (w *walker) emitPropertyAccess(sourceID string, member SyntaxNode, objField, propField string, edgeType graph.EdgeType) {
	propName := w.text(member.ChildByFieldName(propField))
	if target, ok := w.importMap[propName]; ok {
		w.result.Edges = append(w.result.Edges, graph.Edge{Source: sourceID, Target: target, Type: edgeType})
	}
}

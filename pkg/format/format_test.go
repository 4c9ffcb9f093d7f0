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

package format

import (
	"strings"
	"testing"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/store"
)

func node(id, name, snippet string, startLine int) *graph.Node {
	return &graph.Node{
		ID:         id,
		Name:       name,
		Type:       graph.NodeFunction,
		FilePath:   "chain.go",
		StartLine:  startLine,
		Properties: map[string]any{"snippet": snippet},
	}
}

func TestPathRendersSingleChainAndExcludesStartFromNodes(t *testing.T) {
	nodes := []*graph.Node{
		node("entry", "entry", "func entry() {\n  step02()\n}", 1),
		node("step02", "step02", "func step02() {\n  step03()\n}", 10),
		node("step03", "step03", "func step03() {}", 20),
	}
	edges := []*graph.Edge{
		{Source: "entry", Target: "step02", Type: graph.EdgeCalls},
		{Source: "step02", Target: "step03", Type: graph.EdgeCalls},
	}

	out := Path(&store.PathResult{Nodes: nodes, Edges: edges})

	if !strings.Contains(out, "## Graph") {
		t.Fatalf("expected a ## Graph section, got:\n%s", out)
	}
	if !strings.Contains(out, "entry --CALLS--> step02 --CALLS--> step03") {
		t.Errorf("expected the full chain line, got:\n%s", out)
	}
	if strings.Contains(out, "### entry") {
		t.Errorf("did not expect the start node to get its own ## Nodes block:\n%s", out)
	}
	if !strings.Contains(out, "### step02") || !strings.Contains(out, "### step03") {
		t.Errorf("expected node blocks for step02 and step03:\n%s", out)
	}
}

func TestReachabilityMarksCallSiteLines(t *testing.T) {
	nodes := []*graph.Node{
		node("a", "a", "", 1),
		node("b", "b", "func b() {\n  helper()\n  return\n}", 5),
		node("helper", "helper", "func helper() {}", 50),
	}
	edges := []*graph.Edge{
		{Source: "a", Target: "b", Type: graph.EdgeCalls},
		{Source: "b", Target: "helper", Type: graph.EdgeCalls},
	}

	out := Reachability(&store.Reachability{Nodes: nodes, Edges: edges}, "a")

	if !strings.Contains(out, "> ") {
		t.Errorf("expected at least one highlighted call-site line, got:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "> ") && strings.Contains(l, "helper()") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the helper() call line to be marked, got:\n%s", out)
	}
}

func TestRenderNodeCountWithNoEdgesShowsJustTheStartNode(t *testing.T) {
	nodes := []*graph.Node{node("solo", "solo", "func solo() {}", 1)}
	out := Reachability(&store.Reachability{Nodes: nodes, Edges: nil}, "solo")

	if !strings.Contains(out, "solo") {
		t.Errorf("expected the lone node's id to appear in the graph section, got:\n%s", out)
	}
	if strings.Contains(out, "### solo") {
		t.Errorf("did not expect a node block for the start node, got:\n%s", out)
	}
}

func TestContainsIdentifierDoesNotMatchSubstringOfLongerName(t *testing.T) {
	if containsIdentifier("  helperFunc()", "helper") {
		t.Errorf("expected 'helper' to not match within 'helperFunc'")
	}
	if !containsIdentifier("  helper()", "helper") {
		t.Errorf("expected 'helper' to match its own call")
	}
}

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

// Package format renders a query result ({nodes, edges} plus a start
// anchor) into the deterministic Markdown block every query tool
// returns: a `## Graph` section of maximal simple chains, followed by a
// `## Nodes` section with one block per non-start node giving its type,
// file, an adaptive snippet window, and `>` markers on the lines that
// contain a resolved outgoing edge's call site.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/store"
)

// Reachability renders a dependenciesOf/dependentsOf result.
func Reachability(reach *store.Reachability, start string) string {
	return render(reach.Nodes, reach.Edges, start)
}

// Path renders a pathsBetween result. The first node in the path is the
// anchor excluded from the `## Nodes` section.
func Path(path *store.PathResult) string {
	if len(path.Nodes) == 0 {
		return "## Graph\n\nNo path found.\n"
	}
	return render(path.Nodes, path.Edges, path.Nodes[0].ID)
}

func render(nodes []*graph.Node, edges []*graph.Edge, start string) string {
	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var sb strings.Builder
	sb.WriteString("## Graph\n\n")
	chains := maximalSimpleChains(edges, start)
	if len(chains) == 0 {
		sb.WriteString(start)
		sb.WriteString("\n")
	} else {
		for _, c := range chains {
			sb.WriteString(renderChain(c))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n## Nodes\n\n")

	half := windowHalf(len(nodes))
	ordered := make([]*graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == start {
			continue
		}
		ordered = append(ordered, n)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, n := range ordered {
		sb.WriteString(renderNodeBlock(n, edges, byID, half))
	}

	return sb.String()
}

// maximalSimpleChains enumerates every root-to-leaf simple path in the
// edge set, where a root is a node that is never an edge's target (or,
// absent any such node, start itself). Each chain is a maximal
// (non-extendable) sequence of edges with no repeated node.
func maximalSimpleChains(edges []*graph.Edge, start string) [][]*graph.Edge {
	if len(edges) == 0 {
		return nil
	}

	adj := make(map[string][]*graph.Edge)
	hasIncoming := make(map[string]bool)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e)
		hasIncoming[e.Target] = true
	}
	for _, outs := range adj {
		sort.Slice(outs, func(i, j int) bool { return outs[i].Target < outs[j].Target })
	}

	var roots []string
	seen := make(map[string]bool)
	for _, e := range edges {
		if !hasIncoming[e.Source] && !seen[e.Source] {
			roots = append(roots, e.Source)
			seen[e.Source] = true
		}
	}
	if len(roots) == 0 {
		roots = []string{start}
	}
	sort.Strings(roots)

	var chains [][]*graph.Edge
	var dfs func(node string, path []*graph.Edge, visited map[string]bool)
	dfs = func(node string, path []*graph.Edge, visited map[string]bool) {
		extended := false
		for _, e := range adj[node] {
			if visited[e.Target] {
				continue
			}
			extended = true
			visited[e.Target] = true
			dfs(e.Target, append(path, e), visited)
			delete(visited, e.Target)
		}
		if !extended && len(path) > 0 {
			chains = append(chains, append([]*graph.Edge{}, path...))
		}
	}
	for _, r := range roots {
		dfs(r, nil, map[string]bool{r: true})
	}
	return chains
}

func renderChain(chain []*graph.Edge) string {
	var sb strings.Builder
	sb.WriteString(chain[0].Source)
	for _, e := range chain {
		fmt.Fprintf(&sb, " --%s--> %s", e.Type, e.Target)
	}
	return sb.String()
}

// windowHalf picks the per-side context line count for a node's snippet
// window, shrinking as the result set grows so a large dependency graph
// does not dump entire function bodies for every node.
func windowHalf(nodeCount int) int {
	switch {
	case nodeCount <= 3:
		return 6
	case nodeCount <= 8:
		return 3
	case nodeCount <= 20:
		return 2
	default:
		return 1
	}
}

func renderNodeBlock(n *graph.Node, edges []*graph.Edge, byID map[string]*graph.Node, half int) string {
	snippet, _ := n.Properties["snippet"].(string)
	var lines []string
	if snippet != "" {
		lines = strings.Split(snippet, "\n")
	}

	highlights := highlightLines(lines, outgoingTargetNames(n.ID, edges, byID))

	var windows [][2]int
	switch {
	case len(lines) == 0:
		windows = nil
	case len(highlights) == 0:
		hi := len(lines) - 1
		if hi > 2*half {
			hi = 2 * half
		}
		windows = [][2]int{{0, hi}}
	default:
		windows = mergeWindows(highlights, half, len(lines))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n", n.Name)
	fmt.Fprintf(&sb, "type: %s\n", n.Type)
	fmt.Fprintf(&sb, "file: %s\n", n.FilePath)

	if len(windows) == 0 {
		fmt.Fprintf(&sb, "offset: %d\n", n.StartLine)
		fmt.Fprintf(&sb, "limit: 0\n\n")
		return sb.String()
	}

	offset := n.StartLine + windows[0][0]
	limit := windows[len(windows)-1][1] - windows[0][0] + 1
	fmt.Fprintf(&sb, "offset: %d\n", offset)
	fmt.Fprintf(&sb, "limit: %d\n\n", limit)

	highlightSet := make(map[int]bool, len(highlights))
	for _, i := range highlights {
		highlightSet[i] = true
	}

	sb.WriteString("```\n")
	for wi, w := range windows {
		if wi > 0 {
			sb.WriteString("...\n")
		}
		for i := w[0]; i <= w[1]; i++ {
			marker := "  "
			if highlightSet[i] {
				marker = "> "
			}
			sb.WriteString(marker)
			sb.WriteString(lines[i])
			sb.WriteString("\n")
		}
	}
	sb.WriteString("```\n\n")

	return sb.String()
}

// outgoingTargetNames returns the display names of every node nodeID has
// a resolved outgoing edge to, used to locate call-site lines in its
// snippet. Edge carries no line number of its own, so the call site is
// approximated by textual occurrence of the callee's identifier within
// the caller's snippet — the best signal available from stored node
// properties without re-parsing the source.
func outgoingTargetNames(nodeID string, edges []*graph.Edge, byID map[string]*graph.Node) []string {
	var names []string
	for _, e := range edges {
		if e.Source != nodeID {
			continue
		}
		if t, ok := byID[e.Target]; ok && t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

func highlightLines(lines []string, names []string) []int {
	if len(names) == 0 {
		return nil
	}
	var out []int
	for i, line := range lines {
		for _, name := range names {
			if containsIdentifier(line, name) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// containsIdentifier reports whether name appears in line as a whole
// identifier (not as a substring of a longer one).
func containsIdentifier(line, name string) bool {
	if name == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(line[start:], name)
		if idx < 0 {
			return false
		}
		idx += start
		before := idx == 0 || !isIdentChar(rune(line[idx-1]))
		afterPos := idx + len(name)
		after := afterPos >= len(line) || !isIdentChar(rune(line[afterPos]))
		if before && after {
			return true
		}
		start = idx + 1
		if start >= len(line) {
			return false
		}
	}
}

func isIdentChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// mergeWindows turns a sorted set of highlighted line indices into
// [lo,hi] windows of half-width half, merging adjacent windows whose gap
// is itself within half (small gaps are filled in rather than reported
// as a separate window); larger gaps remain separate windows, rendered
// with a "..." elision between them.
func mergeWindows(highlights []int, half, total int) [][2]int {
	sort.Ints(highlights)
	var windows [][2]int
	for _, idx := range highlights {
		lo, hi := idx-half, idx+half
		if lo < 0 {
			lo = 0
		}
		if hi > total-1 {
			hi = total - 1
		}
		if len(windows) > 0 && lo <= windows[len(windows)-1][1]+half {
			if hi > windows[len(windows)-1][1] {
				windows[len(windows)-1][1] = hi
			}
		} else {
			windows = append(windows, [2]int{lo, hi})
		}
	}
	return windows
}

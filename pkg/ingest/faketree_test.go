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
	"strings"
)

// fakeNode is a hand-built SyntaxNode used to exercise the Extractor
// without a real tree-sitter grammar, per parser.go's documented intent
// that the minimal interface shape makes this possible.
type fakeNode struct {
	typ                string
	children           []*fakeNode
	fields             map[string]*fakeNode
	startByte, endByte uint32
	startRow, endRow   uint32
}

func (n *fakeNode) Type() string { return n.typ }

func (n *fakeNode) Child(i int) SyntaxNode {
	if n == nil || i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func (n *fakeNode) ChildCount() int {
	if n == nil {
		return 0
	}
	return len(n.children)
}

func (n *fakeNode) ChildByFieldName(name string) SyntaxNode {
	if n == nil {
		return nil
	}
	f, ok := n.fields[name]
	if !ok {
		return nil
	}
	return f
}

func (n *fakeNode) StartByte() uint32 { return n.startByte }
func (n *fakeNode) EndByte() uint32   { return n.endByte }
func (n *fakeNode) StartPoint() (uint32, uint32) { return n.startRow, 0 }
func (n *fakeNode) EndPoint() (uint32, uint32)   { return n.endRow, 0 }

func (n *fakeNode) withFields(fields map[string]*fakeNode) *fakeNode {
	n.fields = fields
	return n
}

func (n *fakeNode) withChildren(children ...*fakeNode) *fakeNode {
	n.children = children
	return n
}

type fakeTree struct{ root *fakeNode }

func (t *fakeTree) Root() SyntaxNode { return t.root }

// fakeParser returns a fixed SyntaxTree regardless of the src passed in,
// letting tests build the tree once and hand it straight to Extract.
type fakeParser struct{ tree *fakeTree }

func (p *fakeParser) Parse(ctx context.Context, path string, src []byte) (SyntaxTree, error) {
	return p.tree, nil
}

// nthIndex returns the byte offset of the n'th (1-based) occurrence of
// substr in s, or -1 if there are fewer than n occurrences.
func nthIndex(s, substr string, n int) int {
	idx := -1
	start := 0
	for i := 0; i < n; i++ {
		rel := strings.Index(s[start:], substr)
		if rel == -1 {
			return -1
		}
		idx = start + rel
		start = idx + len(substr)
	}
	return idx
}

// leafAt builds a leaf fakeNode of the given type whose byte span covers
// the occurrence'th appearance of text within src.
func leafAt(src, typ, text string, occurrence int) *fakeNode {
	start := nthIndex(src, text, occurrence)
	if start == -1 {
		panic("leafAt: text not found: " + text)
	}
	return &fakeNode{typ: typ, startByte: uint32(start), endByte: uint32(start + len(text))}
}

func node(typ string) *fakeNode {
	return &fakeNode{typ: typ}
}

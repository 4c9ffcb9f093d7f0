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

// Package tsquery adapts github.com/smacker/go-tree-sitter to the
// pkg/ingest.Parser/SyntaxTree/SyntaxNode interfaces, so the extractor
// never imports tree-sitter directly.
package tsquery

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/cie/pkg/ingest"
)

// Adapter parses Go, TypeScript, and TSX source via tree-sitter.
type Adapter struct {
	langs map[ingest.Language]*sitter.Language
}

// New returns a tree-sitter-backed Parser for the three supported languages.
func New() *Adapter {
	return &Adapter{
		langs: map[ingest.Language]*sitter.Language{
			ingest.LanguageGo:         golang.GetLanguage(),
			ingest.LanguageTypeScript: typescript.GetLanguage(),
			ingest.LanguageTSX:        tsx.GetLanguage(),
		},
	}
}

var _ ingest.Parser = (*Adapter)(nil)

// Parse implements ingest.Parser.
func (a *Adapter) Parse(ctx context.Context, path string, src []byte) (ingest.SyntaxTree, error) {
	lang := ingest.LanguageForPath(path)
	sl, ok := a.langs[lang]
	if !ok {
		return nil, fmt.Errorf("tsquery: unsupported file extension for %s", path)
	}

	p := sitter.NewParser()
	p.SetLanguage(sl)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tsquery: parse %s: %w", path, err)
	}

	return &syntaxTree{tree: tree, src: src}, nil
}

type syntaxTree struct {
	tree *sitter.Tree
	src  []byte
}

func (t *syntaxTree) Root() ingest.SyntaxNode {
	root := t.tree.RootNode()
	if root == nil {
		return nil
	}
	return &syntaxNode{node: root, src: t.src}
}

// syntaxNode wraps *sitter.Node plus the source buffer it was parsed
// from, so Text can return a node's literal source without the caller
// passing src.
type syntaxNode struct {
	node *sitter.Node
	src  []byte
}

var _ ingest.SyntaxNode = (*syntaxNode)(nil)

func (n *syntaxNode) Type() string { return n.node.Type() }

func (n *syntaxNode) Child(i int) ingest.SyntaxNode {
	c := n.node.Child(i)
	if c == nil {
		return nil
	}
	return &syntaxNode{node: c, src: n.src}
}

func (n *syntaxNode) ChildCount() int { return int(n.node.ChildCount()) }

func (n *syntaxNode) ChildByFieldName(name string) ingest.SyntaxNode {
	c := n.node.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return &syntaxNode{node: c, src: n.src}
}

func (n *syntaxNode) StartByte() uint32 { return n.node.StartByte() }
func (n *syntaxNode) EndByte() uint32   { return n.node.EndByte() }

func (n *syntaxNode) StartPoint() (row, col uint32) {
	p := n.node.StartPoint()
	return p.Row, p.Column
}

func (n *syntaxNode) EndPoint() (row, col uint32) {
	p := n.node.EndPoint()
	return p.Row, p.Column
}

// Text returns the node's literal source text. Exposed on the concrete
// type only, keeping SyntaxNode itself minimal and mockable; the
// Extractor does not call it and slices text from its own copy of the
// source by byte offset.
func (n *syntaxNode) Text() string {
	return string(n.src[n.node.StartByte():n.node.EndByte()])
}

// Source extracts a SyntaxNode's literal text given the same source
// buffer it was parsed from. Works for any ingest.SyntaxNode
// implementation, not just this package's, via byte offsets.
func Source(src []byte, n ingest.SyntaxNode) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

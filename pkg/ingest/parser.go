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

// Package ingest walks a parsed source file and produces the graph nodes
// and edges it declares, per the node/edge production rules and the
// type-alias edge rule table.
package ingest

import "context"

// Parser produces a SyntaxTree for one source file. The real adapter
// (pkg/ingest/tsquery) wraps github.com/smacker/go-tree-sitter; these
// interfaces are shaped after *sitter.Node/*sitter.Tree so that wrapper
// is a thin pass-through, and so the Extractor itself can be tested
// against a hand-built fake tree with no tree-sitter dependency.
type Parser interface {
	Parse(ctx context.Context, path string, src []byte) (SyntaxTree, error)
}

// SyntaxTree is a parsed source file.
type SyntaxTree interface {
	Root() SyntaxNode
}

// SyntaxNode is one node of a parsed syntax tree.
type SyntaxNode interface {
	Type() string
	Child(i int) SyntaxNode
	ChildCount() int
	ChildByFieldName(name string) SyntaxNode
	StartByte() uint32
	EndByte() uint32
	StartPoint() (row, col uint32)
	EndPoint() (row, col uint32)
}

// Language identifies which grammar a file is parsed with, selected by
// the caller from the file extension.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

// LanguageForPath returns the Language to parse path with, or "" if the
// extension isn't recognized (the file is then skipped by indexProject).
func LanguageForPath(path string) Language {
	switch ext(path) {
	case ".go":
		return LanguageGo
	case ".ts":
		return LanguageTypeScript
	case ".tsx":
		return LanguageTSX
	default:
		return ""
	}
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/':
			return ""
		}
	}
	return ""
}

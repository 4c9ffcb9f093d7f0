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

package pipeline

import (
	"context"
	"testing"

	"github.com/kraklabs/cie/internal/testutil"
	"github.com/kraklabs/cie/pkg/ingest"
	"github.com/kraklabs/cie/pkg/ingest/tsquery"
)

// newFakeEmbedder returns a testutil.FakeEmbedder that fails with
// ErrContentTooLarge once text exceeds maxLen (0 means unbounded),
// enough to drive embedWithFallback's halving ladder.
func newFakeEmbedder(maxLen int) *testutil.FakeEmbedder {
	e := testutil.NewFakeEmbedder()
	if maxLen > 0 {
		e.WithOverflow(maxLen, func(string) error { return ErrContentTooLarge })
	}
	return e
}

// IndexFile's extraction step is exercised end-to-end by pkg/ingest's own
// tests (which already drive Extractor against fake ASTs); the tests below
// instead cover embedWithFallback and the Store/Search/Cache wiring in
// isolation, using the fakes above.

func TestEmbedWithFallbackUsesCacheOnSecondCall(t *testing.T) {
	cache := testutil.NewFakeCache()
	embedder := newFakeEmbedder(0)

	vec1, hash1, err := embedWithFallback(context.Background(), embedder, cache, "Function", "greet", "demo.go", "func greet() {}")
	if err != nil {
		t.Fatalf("embedWithFallback: %v", err)
	}
	if len(vec1) == 0 {
		t.Fatalf("expected non-empty vector")
	}
	callsAfterFirst := embedder.Calls

	vec2, hash2, err := embedWithFallback(context.Background(), embedder, cache, "Function", "greet", "demo.go", "func greet() {}")
	if err != nil {
		t.Fatalf("embedWithFallback (cached): %v", err)
	}
	if hash1 != hash2 {
		t.Errorf("expected same content hash, got %s vs %s", hash1, hash2)
	}
	if len(vec2) != len(vec1) {
		t.Errorf("expected cached vector of same shape")
	}
	if embedder.Calls != callsAfterFirst {
		t.Errorf("expected no additional embedder call on cache hit, calls=%d", embedder.Calls)
	}
}

func TestEmbedWithFallbackHalvesUntilItFits(t *testing.T) {
	cache := testutil.NewFakeCache()
	embedder := newFakeEmbedder(300)

	longSnippet := ""
	for i := 0; i < 50; i++ {
		longSnippet += "line of code that keeps this snippet long enough to overflow\n"
	}

	vec, _, err := embedWithFallback(context.Background(), embedder, cache, "Function", "bigFunc", "demo.go", longSnippet)
	if err != nil {
		t.Fatalf("embedWithFallback: %v", err)
	}
	if len(vec) == 0 {
		t.Fatalf("expected a vector once the snippet shrank enough")
	}
}

func TestEmbedWithFallbackTerminalErrorWhenMetadataOverflows(t *testing.T) {
	cache := testutil.NewFakeCache()
	embedder := newFakeEmbedder(1)

	_, _, err := embedWithFallback(context.Background(), embedder, cache, "Function", "f", "demo.go", "x")
	if err == nil {
		t.Fatalf("expected terminal error when even metadata-only content overflows")
	}
}

func TestCollapseMethodBodiesReplacesFunctionBody(t *testing.T) {
	src := "class Widget {\n  render(): void {\n    doSomething();\n    doMore();\n  }\n}"
	out := collapseMethodBodies(src)
	if want := "class Widget {\n  render(): void { ... }\n}"; out != want {
		t.Errorf("collapseMethodBodies mismatch:\n got:  %q\n want: %q", out, want)
	}
}

func TestIsOverflowErrorMatchesKnownProviderMessages(t *testing.T) {
	cases := []string{
		"openai API error (status 400): This model's maximum context length is 8191 tokens",
		"ollama: input is too long for model",
		"nomic: request entity too large",
	}
	for _, msg := range cases {
		if !isOverflowError(errFromString(msg)) {
			t.Errorf("expected %q to classify as overflow", msg)
		}
	}
	if isOverflowError(errFromString("connection refused")) {
		t.Errorf("did not expect a plain network error to classify as overflow")
	}
}

type stringErr string

func (e stringErr) Error() string { return string(e) }
func errFromString(s string) error { return stringErr(s) }

func TestIndexFileWritesNodesEdgesAndSearchDocs(t *testing.T) {
	src := []byte(`package demo

func greet(name string) string {
	return "hi " + name
}
`)

	p := New(testutil.NewFakeStore(), testutil.NewFakeSearch(), testutil.NewFakeCache(), newFakeEmbedder(0), ingest.NewExtractor(tsquery.New()), nil, nil)

	res, err := p.IndexFile(context.Background(), FileInput{Path: "demo.go", Package: "demo", Source: src})
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if res.NodesAdded == 0 {
		t.Fatalf("expected at least one node written")
	}
	if len(res.Errors) != 0 {
		t.Fatalf("expected no per-node embedding errors, got %v", res.Errors)
	}

	fs := p.Store.(*testutil.FakeStore)
	greetID := "demo.go:greet"
	greetNode, ok := fs.Nodes[greetID]
	if !ok {
		t.Fatalf("expected node %s to be written, got %+v", greetID, fs.Nodes)
	}
	if greetNode.Properties["contentHash"] == nil || greetNode.Properties["contentHash"] == "" {
		t.Errorf("expected contentHash to be set on %s", greetID)
	}
	if greetNode.Properties["snippet"] == nil || greetNode.Properties["snippet"] == "" {
		t.Errorf("expected snippet to be set on %s", greetID)
	}

	sb := p.Search.(*testutil.FakeSearch)
	doc, ok := sb.Docs[greetID]
	if !ok {
		t.Fatalf("expected search document for %s, got %+v", greetID, sb.Docs)
	}
	if doc.File != "demo.go" || doc.Symbol != "greet" {
		t.Errorf("unexpected search document: %+v", doc)
	}
	if len(doc.Embedding) == 0 {
		t.Errorf("expected a non-empty embedding on the search document")
	}
}

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

package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/cie/internal/testutil"
	"github.com/kraklabs/cie/pkg/graphid"
	"github.com/kraklabs/cie/pkg/ingest"
	"github.com/kraklabs/cie/pkg/ingest/tsquery"
	"github.com/kraklabs/cie/pkg/manifest"
	"github.com/kraklabs/cie/pkg/pipeline"
	"github.com/kraklabs/cie/pkg/registry"
)

func newTestEngine(t *testing.T, root string) (*Engine, *testutil.FakeStore, *testutil.FakeSearch) {
	t.Helper()
	st := testutil.NewFakeStore()
	sb := testutil.NewFakeSearch()
	reg := registry.New([]registry.PackageConfig{{Name: "demo", Root: root}}, func(string) bool { return false }, func(string) ([]byte, error) { return nil, nil })
	p := pipeline.New(st, sb, testutil.NewFakeCache(), testutil.NewFakeEmbedder(), ingest.NewExtractor(tsquery.New()), reg, nil)
	e := New(p, reg, st, sb, []registry.PackageConfig{{Name: "demo", Root: root}}, nil)
	return e, st, sb
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSyncIndexesAddedFiles(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "greet.go")
	writeFile(t, filePath, "package demo\n\nfunc greet() string { return \"hi\" }\n")

	e, st, _ := newTestEngine(t, root)
	m, err := manifest.Load(filepath.Join(root, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}

	res, err := e.Sync(context.Background(), m)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.AddedCount != 1 {
		t.Errorf("expected AddedCount 1, got %d", res.AddedCount)
	}
	if res.DeletedCount != 0 || res.StaleCount != 0 {
		t.Errorf("expected no deleted/stale on first sync, got %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no errors, got %v", res.Errors)
	}

	greetID := graphid.NodeID(filePath, "greet")
	if _, ok := st.Nodes[greetID]; !ok {
		t.Errorf("expected node %s to be written, got %+v", greetID, st.Nodes)
	}
	if _, ok := m.Files[filePath]; !ok {
		t.Errorf("expected manifest to record %s", filePath)
	}
}

func TestSyncDetectsStaleAndDeletedFiles(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "greet.go")
	writeFile(t, filePath, "package demo\n\nfunc greet() string { return \"hi\" }\n")

	e, st, sb := newTestEngine(t, root)
	m, err := manifest.Load(filepath.Join(root, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	if _, err := e.Sync(context.Background(), m); err != nil {
		t.Fatalf("initial Sync: %v", err)
	}

	// Force a detectable mtime change before rewriting with different content.
	future := time.Now().Add(time.Second)
	writeFile(t, filePath, "package demo\n\nfunc greet() string { return \"hello\" }\n")
	if err := os.Chtimes(filePath, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	res, err := e.Sync(context.Background(), m)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if res.StaleCount != 1 {
		t.Errorf("expected StaleCount 1 after modifying the file, got %+v", res)
	}

	if err := os.Remove(filePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	res, err = e.Sync(context.Background(), m)
	if err != nil {
		t.Fatalf("third Sync: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Errorf("expected DeletedCount 1 after removing the file, got %+v", res)
	}

	greetID := graphid.NodeID(filePath, "greet")
	if _, ok := st.Nodes[greetID]; ok {
		t.Errorf("expected node %s to be removed from the store", greetID)
	}
	if _, ok := sb.Docs[greetID]; ok {
		t.Errorf("expected doc %s to be removed from search", greetID)
	}
	if _, ok := m.Files[filePath]; ok {
		t.Errorf("expected manifest entry for %s to be dropped", filePath)
	}
}

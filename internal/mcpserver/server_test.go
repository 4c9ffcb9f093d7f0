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

package mcpserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kraklabs/cie/internal/bootstrap"
	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/pkg/query"
)

// bootstrapSession opens a tiny two-function project through
// internal/bootstrap (Caller calls Callee) and runs an initial Sync, so
// dependencies_of/dependents_of/paths_between all have something to find.
func bootstrapSession(t *testing.T) (*query.Engine, string) {
	t.Helper()
	root := t.TempDir()
	src := "package demo\n\nfunc Callee() int {\n\treturn 1\n}\n\nfunc Caller() int {\n\treturn Callee()\n}\n"
	if err := os.WriteFile(filepath.Join(root, "demo.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig("demo")
	cfg.Storage.Path = filepath.Join(".cie", "graph.db")
	if err := config.Save(cfg, config.ConfigPath(root)); err != nil {
		t.Fatal(err)
	}

	sess, err := bootstrap.Open(root, nil)
	if err != nil {
		t.Fatalf("bootstrap.Open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	if _, err := sess.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	return query.New(sess.Store, sess.Search), root
}

func TestDependenciesOfRendersCallee(t *testing.T) {
	engine, root := bootstrapSession(t)
	srv := NewServer(engine, root, nil, "test")

	_, out, err := srv.handleDependenciesOf(context.Background(), nil, SymbolInput{
		FilePath: "demo.go",
		Symbol:   "Caller",
	})
	if err != nil {
		t.Fatalf("handleDependenciesOf: %v", err)
	}
	if out.NodeCount < 2 {
		t.Fatalf("expected at least 2 nodes (Caller, Callee), got %d", out.NodeCount)
	}
	if !strings.Contains(out.Rendered, "Callee") {
		t.Errorf("expected rendered output to mention Callee, got: %s", out.Rendered)
	}
}

func TestDependentsOfRendersCaller(t *testing.T) {
	engine, root := bootstrapSession(t)
	srv := NewServer(engine, root, nil, "test")

	_, out, err := srv.handleDependentsOf(context.Background(), nil, SymbolInput{
		FilePath: "demo.go",
		Symbol:   "Callee",
	})
	if err != nil {
		t.Fatalf("handleDependentsOf: %v", err)
	}
	if !strings.Contains(out.Rendered, "Caller") {
		t.Errorf("expected rendered output to mention Caller, got: %s", out.Rendered)
	}
}

func TestPathsBetweenFindsChain(t *testing.T) {
	engine, root := bootstrapSession(t)
	srv := NewServer(engine, root, nil, "test")

	_, out, err := srv.handlePathsBetween(context.Background(), nil, PathsBetweenInput{
		FromFile: "demo.go", FromSymbol: "Caller",
		ToFile: "demo.go", ToSymbol: "Callee",
	})
	if err != nil {
		t.Fatalf("handlePathsBetween: %v", err)
	}
	if !out.Found {
		t.Fatal("expected a path to be found between Caller and Callee")
	}
}

func TestHandleDependenciesOfUnknownSymbolMapsToToolError(t *testing.T) {
	engine, root := bootstrapSession(t)
	srv := NewServer(engine, root, nil, "test")

	_, _, err := srv.handleDependenciesOf(context.Background(), nil, SymbolInput{
		FilePath: "demo.go",
		Symbol:   "Ghost",
	})
	if err == nil {
		t.Fatal("expected an error for an unindexed symbol")
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected a *ToolError, got %T: %v", err, err)
	}
	if toolErr.Code != ErrCodeSymbolNotIndexed {
		t.Errorf("expected ErrCodeSymbolNotIndexed, got %d", toolErr.Code)
	}
}

func TestResolvePathLeavesAbsolutePathsAlone(t *testing.T) {
	srv := &Server{root: "/proj"}
	if got := srv.resolvePath("/already/abs.go"); got != "/already/abs.go" {
		t.Errorf("expected absolute path unchanged, got %q", got)
	}
	if got := srv.resolvePath("rel.go"); got != filepath.Join("/proj", "rel.go") {
		t.Errorf("expected rel.go joined against root, got %q", got)
	}
}

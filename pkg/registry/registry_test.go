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

package registry

import (
	"errors"
	"testing"
)

func fakeFS(files map[string]string) (FileExister, FileReader) {
	exists := func(p string) bool {
		_, ok := files[p]
		return ok
	}
	read := func(p string) ([]byte, error) {
		content, ok := files[p]
		if !ok {
			return nil, errors.New("not found")
		}
		return []byte(content), nil
	}
	return exists, read
}

func TestResolveRelative(t *testing.T) {
	exists, read := fakeFS(map[string]string{
		"src/a.ts": "",
		"src/b.ts": "",
	})
	r := New(nil, exists, read)

	got, ok := r.Resolve("src/a.ts", "./b")
	if !ok || got != "src/b.ts" {
		t.Fatalf("Resolve = %q, %v", got, ok)
	}
}

func TestResolveRelativeIndexFallback(t *testing.T) {
	exists, read := fakeFS(map[string]string{
		"src/a.ts":       "",
		"src/lib/index.ts": "",
	})
	r := New(nil, exists, read)

	got, ok := r.Resolve("src/a.ts", "./lib")
	if !ok || got != "src/lib/index.ts" {
		t.Fatalf("Resolve = %q, %v", got, ok)
	}
}

func TestResolveAliasLongestPrefix(t *testing.T) {
	exists, read := fakeFS(map[string]string{
		"src/a.ts":            "",
		"src/shared/util.ts":  "",
		"src/shared/deep/x.ts": "",
	})
	pkgs := []PackageConfig{
		{
			Name: "app",
			Root: "src",
			Aliases: map[string][]string{
				"@/shared":      {"src/shared"},
				"@/shared/deep": {"src/shared/deep"},
			},
		},
	}
	r := New(pkgs, exists, read)

	got, ok := r.Resolve("src/a.ts", "@/shared/util")
	if !ok || got != "src/shared/util.ts" {
		t.Fatalf("Resolve @/shared/util = %q, %v", got, ok)
	}

	got2, ok := r.Resolve("src/a.ts", "@/shared/deep/x")
	if !ok || got2 != "src/shared/deep/x.ts" {
		t.Fatalf("Resolve @/shared/deep/x = %q, %v (expected longest-prefix alias)", got2, ok)
	}
}

func TestResolveWorkspacePackageEntry(t *testing.T) {
	exists, read := fakeFS(map[string]string{
		"packages/core/index.ts": "",
	})
	pkgs := []PackageConfig{
		{Name: "@myorg/core", Root: "packages/core", EntryFile: "packages/core/index.ts"},
	}
	r := New(pkgs, exists, read)

	got, ok := r.Resolve("app/a.ts", "@myorg/core")
	if !ok || got != "packages/core/index.ts" {
		t.Fatalf("Resolve package entry = %q, %v", got, ok)
	}
}

func TestResolveExternalIsSkipped(t *testing.T) {
	exists, read := fakeFS(map[string]string{"src/a.ts": ""})
	r := New(nil, exists, read)

	_, ok := r.Resolve("src/a.ts", "react")
	if ok {
		t.Fatal("expected external specifier to not resolve")
	}
}

func TestFollowBarrelNamedReExport(t *testing.T) {
	files := map[string]string{
		"src/index.ts": `export { widget } from "./internal/widget"`,
		"src/internal/widget.ts": "export function widget() {}",
	}
	exists, read := fakeFS(files)
	r := New(nil, exists, read)

	got, ok := r.FollowBarrel("src/consumer.ts", "./index", "widget")
	if !ok {
		t.Fatal("FollowBarrel failed")
	}
	if got != "src/internal/widget.ts" {
		t.Fatalf("FollowBarrel = %q, want src/internal/widget.ts", got)
	}
}

func TestFollowBarrelStarReExportChain(t *testing.T) {
	files := map[string]string{
		"src/index.ts":       `export * from "./mid"`,
		"src/mid.ts":         `export * from "./leaf"`,
		"src/leaf.ts":        "export function thing() {}",
	}
	exists, read := fakeFS(files)
	r := New(nil, exists, read)

	got, ok := r.FollowBarrel("src/consumer.ts", "./index", "thing")
	if !ok || got != "src/leaf.ts" {
		t.Fatalf("FollowBarrel chain = %q, %v", got, ok)
	}
}

func TestEnsureParsedOnlyCallsOnce(t *testing.T) {
	r := New(nil, func(string) bool { return true }, nil)

	calls := 0
	parse := func() (*ParsedFile, error) {
		calls++
		return &ParsedFile{Path: "a.ts"}, nil
	}

	if _, err := r.EnsureParsed("a.ts", parse); err != nil {
		t.Fatalf("EnsureParsed: %v", err)
	}
	if _, err := r.EnsureParsed("a.ts", parse); err != nil {
		t.Fatalf("EnsureParsed second call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("parse called %d times, want 1", calls)
	}
}

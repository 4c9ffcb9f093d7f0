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

// Package registry resolves a logical import specifier written in one
// file to the project-relative path of the file it names: relative
// imports, tsconfig-style path aliases, workspace package entries, and
// re-export barrels. It also owns the per-run guarantee that a given
// file is parsed at most once.
package registry

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// candidateSuffixes are tried, in order, when a relative or alias-resolved
// specifier has no extension: first as a file, then as a directory index.
var candidateSuffixes = []string{
	"", ".ts", ".tsx", ".js", ".jsx",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
	".go",
}

// PackageConfig describes one workspace package's resolution inputs.
type PackageConfig struct {
	// Name is the workspace package name other packages import by
	// (e.g. "@myorg/core"), or the Go import path.
	Name string
	// Root is the project-relative directory this package owns; used to
	// decide which package's alias rules apply to a given file.
	Root string
	// EntryFile is resolved when another package imports this package by
	// bare name rather than a specific subpath.
	EntryFile string
	// Aliases maps a path-alias prefix (tsconfig "paths" key, trailing
	// "/*" stripped) to one or more candidate target prefixes, tried in
	// order. Longest prefix wins when multiple aliases match.
	Aliases map[string][]string
}

// FileExister checks whether a project-relative file exists. Abstracted
// so tests can run against an in-memory fixture instead of real disk.
type FileExister func(path string) bool

// FileReader reads a project-relative file's contents, used only to scan
// barrel files for re-export statements.
type FileReader func(path string) ([]byte, error)

// ParsedFile is an opaque per-file parse result the registry caches so
// that a file is never parsed twice in the same indexProject run. The
// Extractor owns the concrete contents; the registry only keys by path.
type ParsedFile struct {
	Path string
	Data any
}

// Registry resolves import specifiers and memoizes per-file parses for
// the duration of one indexProject run.
type Registry struct {
	packages []PackageConfig
	exists   FileExister
	readFile FileReader

	mu     sync.Mutex
	parsed map[string]*ParsedFile
}

// New builds a Registry over the given workspace packages.
func New(packages []PackageConfig, exists FileExister, readFile FileReader) *Registry {
	sorted := make([]PackageConfig, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Root) > len(sorted[j].Root) })

	return &Registry{
		packages: sorted,
		exists:   exists,
		readFile: readFile,
		parsed:   make(map[string]*ParsedFile),
	}
}

// OwningPackage returns the package whose Root is the longest matching
// prefix of file, or nil if file belongs to no configured package.
func (r *Registry) OwningPackage(file string) *PackageConfig {
	for i := range r.packages {
		pkg := &r.packages[i]
		if pkg.Root == "" || strings.HasPrefix(file, pkg.Root+"/") || file == pkg.Root {
			return pkg
		}
	}
	return nil
}

// Resolve maps specifier, written inside fromFile, to a project-relative
// file path. Resolution order: relative specifier, then path-alias rule
// (longest prefix, evaluated in fromFile's owning package), then
// workspace-package entry, then external (ok=false).
func (r *Registry) Resolve(fromFile, specifier string) (string, bool) {
	if strings.HasPrefix(specifier, ".") {
		joined := path.Join(path.Dir(fromFile), specifier)
		return r.firstExisting(joined)
	}

	if pkg := r.OwningPackage(fromFile); pkg != nil {
		if target, ok := r.resolveAlias(pkg, specifier); ok {
			if resolved, found := r.firstExisting(target); found {
				return resolved, true
			}
		}
	}

	for _, pkg := range r.packages {
		if pkg.Name == specifier {
			return pkg.EntryFile, pkg.EntryFile != ""
		}
		if strings.HasPrefix(specifier, pkg.Name+"/") {
			rest := strings.TrimPrefix(specifier, pkg.Name+"/")
			if resolved, found := r.firstExisting(path.Join(pkg.Root, rest)); found {
				return resolved, true
			}
		}
	}

	return "", false
}

// resolveAlias applies pkg's longest-matching alias prefix to specifier.
func (r *Registry) resolveAlias(pkg *PackageConfig, specifier string) (string, bool) {
	var bestPrefix string
	var bestTargets []string

	for prefix, targets := range pkg.Aliases {
		if specifier == prefix || strings.HasPrefix(specifier, prefix+"/") {
			if len(prefix) > len(bestPrefix) {
				bestPrefix, bestTargets = prefix, targets
			}
		}
	}
	if bestPrefix == "" {
		return "", false
	}

	rest := strings.TrimPrefix(specifier, bestPrefix)
	rest = strings.TrimPrefix(rest, "/")
	for _, target := range bestTargets {
		candidate := target
		if rest != "" {
			candidate = path.Join(target, rest)
		}
		return candidate, true
	}
	return "", false
}

func (r *Registry) firstExisting(base string) (string, bool) {
	for _, suffix := range candidateSuffixes {
		candidate := base + suffix
		if r.exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

var reExportNamed = regexp.MustCompile(`export\s*\{[^}]*\}\s*from\s*["']([^"']+)["']`)
var reExportStar = regexp.MustCompile(`export\s*\*\s*from\s*["']([^"']+)["']`)

// FollowBarrel resolves specifier from fromFile, then transparently
// follows re-export barrels (`export { X } from "Y"` / `export * from
// "Y"`) up to 3 levels deep, so that symbol resolves to its ultimate
// definition site rather than the intermediate barrel file. Path-alias
// rules inside a re-exported file are evaluated in that file's own
// owning package.
func (r *Registry) FollowBarrel(fromFile, specifier, symbol string) (string, bool) {
	resolved, ok := r.Resolve(fromFile, specifier)
	if !ok {
		return "", false
	}

	const maxDepth = 3
	current := resolved
	for depth := 0; depth < maxDepth; depth++ {
		next, ok := r.nextBarrelHop(current, symbol)
		if !ok {
			break
		}
		current = next
	}
	return current, true
}

func (r *Registry) nextBarrelHop(file, symbol string) (string, bool) {
	if r.readFile == nil {
		return "", false
	}
	data, err := r.readFile(file)
	if err != nil {
		return "", false
	}
	content := string(data)

	for _, m := range reExportNamed.FindAllStringSubmatch(content, -1) {
		names := m[0][strings.Index(m[0], "{")+1 : strings.Index(m[0], "}")]
		named := false
		for _, spec := range strings.Split(names, ",") {
			// `export { a as b }` re-exports the name b.
			if f := strings.Fields(spec); len(f) > 0 && f[len(f)-1] == symbol {
				named = true
			}
		}
		if !named {
			continue
		}
		if next, ok := r.Resolve(file, m[1]); ok {
			return next, true
		}
	}
	if m := reExportStar.FindStringSubmatch(content); m != nil {
		if next, ok := r.Resolve(file, m[1]); ok {
			return next, true
		}
	}
	return "", false
}

// EnsureParsed returns the cached parse of path if one was already
// produced during this run; otherwise it calls parse, caches, and
// returns the result. This is the single enforcement point for the
// "a file is parsed at most once per indexProject run" invariant.
func (r *Registry) EnsureParsed(path string, parse func() (*ParsedFile, error)) (*ParsedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pf, ok := r.parsed[path]; ok {
		return pf, nil
	}
	pf, err := parse()
	if err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	r.parsed[path] = pf
	return pf, nil
}

// Reset clears the per-run parse cache, for reuse across multiple
// indexProject runs (e.g. successive sync cycles) in the same process.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsed = make(map[string]*ParsedFile)
}

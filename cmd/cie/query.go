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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/metrics"
	"github.com/kraklabs/cie/internal/output"
	"github.com/kraklabs/cie/pkg/format"
	"github.com/kraklabs/cie/pkg/query"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
)

// runQuery executes the 'query' CLI command: a thin CLI wrapper over
// pkg/query.Engine's three operations. There is no general query
// language to expose here (that went away with CozoScript); the engine
// only answers three fixed questions, so the CLI surface is three fixed
// subcommands instead of one argument that accepts arbitrary script.
//
// Usage:
//
//	cie query deps  <file> <symbol> [--topic text] [--json]
//	cie query deps-of <file> <symbol>          (alias for deps)
//	cie query dependents <file> <symbol> [--topic text] [--json]
//	cie query paths <from-file> <from-symbol> <to-file> <to-symbol> [--json]
func runQuery(args []string, configPath string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cie query <deps|dependents|paths> ...")
		os.Exit(1)
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "deps", "deps-of", "dependencies":
		runQueryTraversal(rest, "dependencies_of")
	case "dependents", "dependents-of":
		runQueryTraversal(rest, "dependents_of")
	case "paths", "paths-between":
		runQueryPaths(rest)
	default:
		fmt.Fprintf(os.Stderr, "Unknown query subcommand: %s\n", sub)
		fmt.Fprintln(os.Stderr, "Usage: cie query <deps|dependents|paths> ...")
		os.Exit(1)
	}
}

func runQueryTraversal(args []string, op string) {
	fs := flag.NewFlagSet("query "+op, flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	topic := fs.String("topic", "", "Only keep chains leading to a node topically relevant to this text")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie query %s <file> <symbol> [options]

Options:
`, op)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Error: exactly two arguments required: <file> <symbol>")
		fs.Usage()
		os.Exit(1)
	}

	engine, root := openQueryEngineOrExit(*jsonOutput)
	ref := query.SymbolRef{FilePath: resolveQueryPath(root, fs.Arg(0)), Symbol: fs.Arg(1)}
	opts := query.Options{Topic: *topic}

	var reach *store.Reachability
	var err error
	ctx := context.Background()
	start := time.Now()
	if op == "dependencies_of" {
		reach, err = engine.DependenciesOf(ctx, ref, opts)
	} else {
		reach, err = engine.DependentsOf(ctx, ref, opts)
	}
	metrics.RecordQuery(op, time.Since(start))
	if err != nil {
		reportQueryError(err, *jsonOutput)
	}

	if *jsonOutput {
		_ = output.JSON(map[string]any{
			"nodes": reach.Nodes,
			"edges": reach.Edges,
		})
		return
	}
	fmt.Println(format.Reachability(reach, startNodeIDForCLI(reach, ref)))
}

func runQueryPaths(args []string) {
	fs := flag.NewFlagSet("query paths", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie query paths <from-file> <from-symbol> <to-file> <to-symbol> [options]

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 4 {
		fmt.Fprintln(os.Stderr, "Error: exactly four arguments required: <from-file> <from-symbol> <to-file> <to-symbol>")
		fs.Usage()
		os.Exit(1)
	}

	engine, root := openQueryEngineOrExit(*jsonOutput)
	from := query.SymbolRef{FilePath: resolveQueryPath(root, fs.Arg(0)), Symbol: fs.Arg(1)}
	to := query.SymbolRef{FilePath: resolveQueryPath(root, fs.Arg(2)), Symbol: fs.Arg(3)}

	start := time.Now()
	path, err := engine.PathsBetween(context.Background(), from, to)
	metrics.RecordQuery("paths_between", time.Since(start))
	if err != nil {
		reportQueryError(err, *jsonOutput)
	}

	if *jsonOutput {
		_ = output.JSON(map[string]any{
			"found": len(path.Nodes) > 0,
			"nodes": path.Nodes,
			"edges": path.Edges,
		})
		return
	}
	fmt.Println(format.Path(path))
}

// openQueryEngineOrExit opens the project's store and search backend
// read-only-in-spirit (the CLI never writes through them) and returns a
// ready query.Engine plus the project root to resolve relative paths
// against.
func openQueryEngineOrExit(jsonOutput bool) (*query.Engine, string) {
	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "This is a bug. Please report it.", err), jsonOutput)
	}

	cfg, err := config.Load(config.ConfigPath(cwd))
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load project configuration",
			err.Error(),
			"Run 'cie init' to create a new .cie/project.yaml",
			err,
		), jsonOutput)
	}

	storagePath := cfg.Storage.Path
	if storagePath != "" && !filepath.IsAbs(storagePath) {
		storagePath = filepath.Join(cwd, storagePath)
	}
	st, err := store.OpenSQLite(storagePath)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open the graph store",
			err.Error(),
			"Run 'cie index' to build it first",
			err,
		), jsonOutput)
	}

	sb, err := search.NewHybridBackend()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot initialize the search backend", err.Error(), "This is a bug. Please report it.", err), jsonOutput)
	}

	return query.New(st, sb), cwd
}

// resolveQueryPath joins a caller-supplied file path against root unless
// already absolute, mirroring internal/mcpserver's convention: the Store
// indexes files by the same absolute paths pkg/sync walks.
func resolveQueryPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func reportQueryError(err error, jsonOutput bool) {
	switch err {
	case query.ErrSymbolNotIndexed:
		errors.FatalError(errors.NewNotFoundError(
			"Symbol is not indexed",
			err.Error(),
			"Check the file path and symbol name, or run 'cie index' if the project has changed",
		), jsonOutput)
	case query.ErrSameSymbol:
		errors.FatalError(errors.NewInputError(
			"Source and target are the same symbol",
			err.Error(),
			"Pick two distinct symbols",
		), jsonOutput)
	default:
		errors.FatalError(errors.NewInternalError("Query failed", err.Error(), "This is a bug. Please report it.", err), jsonOutput)
	}
}

// startNodeIDForCLI mirrors internal/mcpserver.startNodeID: the start
// node is always present in reach.Nodes, identifiable by the same
// (file, symbol) pair the caller queried with.
func startNodeIDForCLI(reach *store.Reachability, ref query.SymbolRef) string {
	for _, n := range reach.Nodes {
		if n.FilePath == ref.FilePath && n.Name == ref.Symbol {
			return n.ID
		}
	}
	return ""
}

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

// Package main implements the CIE CLI for indexing repositories and querying
// the Code Intelligence Engine.
//
// Usage:
//
//	cie init                      Create .cie/project.yaml configuration
//	cie index                     Reconcile the graph against the files on disk
//	cie watch                     Index, then keep reconciling on every file change
//	cie status [--json]           Show project status
//	cie query <cmd> ...           Run dependencies_of/dependents_of/paths_between
//	cie --mcp                     Start as MCP server (JSON-RPC over stdio)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/cie/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds the flags every subcommand shares: output verbosity
// and formatting, independent of whichever FlagSet the subcommand itself
// parses.
type GlobalFlags struct {
	Quiet   bool
	JSON    bool
	Verbose int
	NoColor bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		mcpMode     = flag.Bool("mcp", false, "Start as MCP server (JSON-RPC over stdio)")
		configPath  = flag.String("config", "", "Path to .cie/project.yaml (default: ./.cie/project.yaml)")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		jsonOutput  = flag.Bool("json", false, "Output machine-readable JSON where supported")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
	)
	flag.BoolVar(quiet, "q", false, "Suppress progress output (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CIE - Code Intelligence Engine CLI

Usage:
  cie <command> [options]

Commands:
  init          Create .cie/project.yaml configuration
  index         Reconcile the graph against the files on disk, then exit
  sync          Alias for index
  watch         Index, then keep reconciling on every file change
  status        Show project status
  query         Run dependencies_of/dependents_of/paths_between
  reset         Delete the local .cie/ cache (destructive!)
  install-hook  Install git post-commit hook for auto-indexing
  completion    Generate shell completion scripts

Global Options:
  --mcp         Start as MCP server (JSON-RPC over stdio)
  --config      Path to .cie/project.yaml
  --quiet, -q   Suppress progress output
  --json        Output machine-readable JSON where supported
  --no-color    Disable colored output
  --version     Show version and exit

Examples:
  cie init                           Create configuration interactively
  cie index                          Reconcile the graph once
  cie watch                          Reconcile, then watch for changes
  cie status --json                  Output as JSON
  cie query deps pkg/foo.go Handler
  cie --mcp                          Start as MCP server

Data Storage:
  Data is stored in ./.cie/ under the project root.

Environment Variables:
  OLLAMA_HOST        Ollama URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL Embedding model (default: nomic-embed-text)

`)
	}

	flag.Parse()
	ui.InitColors(*noColor)
	globals := GlobalFlags{Quiet: *quiet || *jsonOutput, JSON: *jsonOutput, NoColor: *noColor}

	if *showVersion {
		fmt.Printf("cie version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if *mcpMode {
		runMCPServer(*configPath)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "index", "sync":
		runIndex(cmdArgs, *configPath, globals)
	case "watch":
		runWatch(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "query":
		runQuery(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "install-hook":
		runInstallHook(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

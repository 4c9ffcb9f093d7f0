// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/output"
	"github.com/kraklabs/cie/pkg/graph"
	"github.com/kraklabs/cie/pkg/store"
)

// StatusResult represents the project status for JSON output.
type StatusResult struct {
	ProjectID  string    `json:"project_id"`
	Root       string    `json:"root"`
	Indexed    bool      `json:"indexed"`
	Files      int       `json:"files"`
	Functions  int       `json:"functions"`
	Types      int       `json:"types"`
	Interfaces int       `json:"interfaces"`
	Variables  int       `json:"variables"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying project index statistics.
//
// It opens the local graph store and counts nodes by type, so users can verify
// that indexing completed and understand the scope of their indexed codebase.
//
// Flags:
//   - --json: Output results as JSON (default: false)
//
// Examples:
//
//	cie status           Display formatted status
//	cie status --json    Output as JSON for programmatic use
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie status [options]

Shows local project status.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfgPath := config.ConfigPath(cwd)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		result := &StatusResult{Root: cwd, Indexed: false, Error: err.Error(), Timestamp: time.Now()}
		if *jsonOutput {
			outputStatusJSON(result)
		} else {
			fmt.Printf("Project not initialized at %s.\n", cwd)
			fmt.Println("Run 'cie init' to create a configuration.")
		}
		os.Exit(1)
	}

	storagePath := cfg.Storage.Path
	if storagePath != "" && !filepath.IsAbs(storagePath) {
		storagePath = filepath.Join(cwd, storagePath)
	}
	if _, err := os.Stat(storagePath); os.IsNotExist(err) {
		result := &StatusResult{ProjectID: cfg.ProjectID, Root: cwd, Indexed: false, Timestamp: time.Now()}
		if *jsonOutput {
			outputStatusJSON(result)
		} else {
			fmt.Printf("Project '%s' not indexed yet.\n", cfg.ProjectID)
			fmt.Println("Run 'cie index' to index the repository.")
		}
		os.Exit(0)
	}

	st, err := store.OpenSQLite(storagePath)
	if err != nil {
		result := &StatusResult{ProjectID: cfg.ProjectID, Root: cwd, Indexed: false, Error: err.Error(), Timestamp: time.Now()}
		if *jsonOutput {
			outputStatusJSON(result)
		} else {
			fmt.Fprintf(os.Stderr, "Error: cannot open graph store: %v\n", err)
		}
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	result := &StatusResult{
		ProjectID:  cfg.ProjectID,
		Root:       cwd,
		Indexed:    true,
		Files:      countNodes(ctx, st, graph.NodeFile),
		Functions:  countNodes(ctx, st, graph.NodeFunction) + countNodes(ctx, st, graph.NodeMethod),
		Types:      countNodes(ctx, st, graph.NodeClass) + countNodes(ctx, st, graph.NodeTypeAlias),
		Interfaces: countNodes(ctx, st, graph.NodeInterface),
		Variables:  countNodes(ctx, st, graph.NodeVariable) + countNodes(ctx, st, graph.NodeProperty),
		Timestamp:  time.Now(),
	}

	if *jsonOutput {
		outputStatusJSON(result)
	} else {
		printLocalStatus(result)
	}
}

// countNodes counts nodes of a single type. Store.QueryNodes has no
// dedicated count operation; for a status summary the full node list's
// length is cheap enough not to warrant one.
func countNodes(ctx context.Context, st store.Store, t graph.NodeType) int {
	nodes, err := st.QueryNodes(ctx, store.NodeFilter{Types: []graph.NodeType{t}})
	if err != nil {
		return 0
	}
	return len(nodes)
}

// outputStatusJSON writes the status result as formatted JSON to stdout.
func outputStatusJSON(result *StatusResult) {
	if err := output.JSON(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// printLocalStatus prints the status result as formatted text to stdout.
func printLocalStatus(result *StatusResult) {
	fmt.Println("CIE Project Status")
	fmt.Println("==================")
	fmt.Printf("Project ID: %s\n", result.ProjectID)
	fmt.Printf("Root:       %s\n", result.Root)
	fmt.Println()

	fmt.Println("Entities:")
	fmt.Printf("  Files:       %d\n", result.Files)
	fmt.Printf("  Functions:   %d\n", result.Functions)
	fmt.Printf("  Types:       %d\n", result.Types)
	fmt.Printf("  Interfaces:  %d\n", result.Interfaces)
	fmt.Printf("  Variables:   %d\n", result.Variables)

	if result.Error != "" {
		fmt.Printf("\nWarning: %s\n", result.Error)
	}
}

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
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/cie/internal/config"
)

// runReset executes the 'reset' CLI command: it deletes the project's
// local .cie/ directory (config, graph store, and manifest together),
// so the next 'cie init'+'cie index' starts from nothing. There is no
// separate remote data directory to reach for anymore; everything the
// project owns lives under its own root.
func runReset(args []string, configPath string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie reset [options]

Deletes the local .cie/ directory: configuration, the graph database, and
the sync manifest. Use this before a full re-index to start clean.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete the .cie/ directory for this project.\n")
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	dir := config.ConfigDir(cwd)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Printf("No .cie/ directory found at %s\n", cwd)
		os.Exit(0)
	}

	fmt.Printf("Resetting project (deleting %s)...\n", dir)

	if err := os.RemoveAll(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete %s: %v\n", dir, err)
		os.Exit(1)
	}

	fmt.Println("Reset complete. All local project data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  cie init     Recreate the project configuration")
	fmt.Println("  cie index    Reindex the project")
}

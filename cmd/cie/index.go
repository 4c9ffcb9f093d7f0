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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kraklabs/cie/internal/bootstrap"
	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/output"
	"github.com/kraklabs/cie/internal/ui"
	"github.com/kraklabs/cie/pkg/sync"
)

// runIndex executes the 'index' (and its 'sync' alias) CLI command: it
// opens the project, runs one SyncEngine reconciliation against the
// files currently on disk, and exits. It never starts the Watcher; use
// 'cie watch' for that.
//
// Flags:
//   - --debug: Enable debug logging
//
// Examples:
//
//	cie index           Reconcile the graph once
//	cie index --debug   Reconcile with verbose logging
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie index [options]

Reconciles the graph against the files currently on disk: added files are
parsed and inserted, changed files are re-parsed, deleted files are
removed. Safe to run repeatedly; only changed files cost work.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	sess := openSessionOrExit(*debug, globals)
	defer func() { _ = sess.Close() }()

	progCfg := NewProgressConfig(globals)
	spinner := NewSpinner(progCfg, "Indexing")

	result, err := sess.Sync(context.Background())
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Index failed",
			err.Error(),
			"Run 'cie reset --yes' to rebuild the project from scratch if this persists",
			err,
		), globals.JSON)
	}

	printIndexResult(result, globals)
}

// runWatch executes the 'watch' CLI command: it runs the same initial
// reconciliation as 'cie index', then starts the filesystem Watcher and
// blocks, reconciling incrementally on every subsequent create/modify/
// delete event until interrupted.
//
// Examples:
//
//	cie watch    Reconcile once, then watch for changes
func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie watch [options]

Reconciles the graph once, then watches the project for file changes and
reconciles incrementally as they happen. Runs until interrupted (Ctrl-C).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	sess := openSessionOrExit(*debug, globals)
	defer func() { _ = sess.Close() }()

	if _, err := sess.Sync(context.Background()); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Initial index failed",
			err.Error(),
			"Run 'cie reset --yes' to rebuild the project from scratch if this persists",
			err,
		), globals.JSON)
	}

	if !globals.Quiet {
		ui.Success(fmt.Sprintf("Indexed %d files, watching for changes (Ctrl-C to stop)...", sess.FileCount()))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sess.StartWatching(ctx); err != nil {
		errors.FatalError(errors.NewInternalError(
			"Watcher failed",
			err.Error(),
			"This is a bug. Please report it.",
			err,
		), globals.JSON)
	}
}

// openSessionOrExit opens the project rooted at the current directory,
// printing a UserError and exiting on failure instead of returning one,
// matching the rest of the CLI's fail-fast style.
func openSessionOrExit(debug bool, globals GlobalFlags) *bootstrap.Session {
	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot get current directory",
			err.Error(),
			"This is a bug. Please report it.",
			err,
		), globals.JSON)
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if globals.Quiet {
		out = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	sess, err := bootstrap.Open(cwd, logger)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	return sess
}

// printIndexResult prints what a Sync call applied, respecting --quiet
// and --json.
func printIndexResult(result *sync.Result, globals GlobalFlags) {
	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	if globals.Quiet {
		return
	}

	ui.Success(fmt.Sprintf("Indexed in %dms: %d added, %d updated, %d deleted",
		result.DurationMs, result.AddedCount, result.StaleCount, result.DeletedCount))
	for _, e := range result.Errors {
		ui.Warning(e)
	}
}

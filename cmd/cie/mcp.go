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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kraklabs/cie/internal/bootstrap"
	"github.com/kraklabs/cie/internal/mcpserver"
	"github.com/kraklabs/cie/pkg/query"
)

// runMCPServer opens the project rooted at the current directory and
// serves dependencies_of/dependents_of/paths_between over stdio until the
// process receives SIGINT/SIGTERM. Unlike runIndex/runWatch it does not
// run Sync first: an agent is expected to have already indexed (or be
// running 'cie watch' alongside) before pointing a client at this server.
func runMCPServer(configPath string) {
	_ = configPath // bootstrap.Open resolves .cie/project.yaml from the project root itself

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sess, err := bootstrap.Open(cwd, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = sess.Close() }()

	engine := query.New(sess.Store, sess.Search)
	srv := mcpserver.NewServer(engine, sess.Root, logger, version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: mcp server: %v\n", err)
		os.Exit(1)
	}
}

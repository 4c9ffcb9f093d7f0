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

// Package contract provides validation constants and utilities for CIE.
//
// This internal package contains the size and identifier limits applied at
// the boundary between untrusted input (source files on disk, MCP tool
// arguments) and the indexing/query pipeline.
//
// # Source Size Limits
//
// A single source file is rejected before parsing if it exceeds a soft
// limit, avoiding a slow parse or an embedder rejection deep in the
// pipeline for a file that was never going to fit:
//
//	// Default limit is 8 MiB
//	limit := contract.SoftLimitBytes()
//
//	// Validate a file's content before indexing it
//	result := contract.ValidateSourceSize(path, src)
//	if !result.OK {
//	    log.Printf("skipping %s: %s", path, result.Message)
//	}
//
// # Configuration via Environment
//
// The soft limit can be adjusted via the CIE_SOFT_LIMIT_BYTES environment
// variable:
//
//	export CIE_SOFT_LIMIT_BYTES=33554432  # 32 MiB
//
// If the environment variable is not set or invalid, the default limit
// of 8 MiB (DefaultSoftLimitBytes) is used.
//
// # Constants
//
// The package exports these constants:
//
//   - DefaultSoftLimitBytes: Baseline soft limit (8 MiB)
//   - RequestIDMaxBytes: Maximum length for caller-supplied identifiers (128 bytes)
package contract

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

package mcpserver

import (
	"errors"
	"fmt"

	"github.com/kraklabs/cie/pkg/query"
)

// JSON-RPC error codes this server returns. -326xx is the standard
// reserved range; -320xx is this server's own.
const (
	ErrCodeSymbolNotIndexed = -32001
	ErrCodeSameSymbol       = -32002
	ErrCodeInvalidParams    = -32602
	ErrCodeInternalError    = -32603
)

// ToolError is an MCP tool error with a JSON-RPC error code.
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcpserver: %s (code %d)", e.Message, e.Code)
}

// MapError classifies a query.Engine error into a ToolError so MCP clients
// get a stable code to branch on instead of parsing prose.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, query.ErrSymbolNotIndexed):
		return &ToolError{Code: ErrCodeSymbolNotIndexed, Message: err.Error()}
	case errors.Is(err, query.ErrSameSymbol):
		return &ToolError{Code: ErrCodeSameSymbol, Message: err.Error()}
	default:
		return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

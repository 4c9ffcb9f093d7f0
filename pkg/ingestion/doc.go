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

// Package ingestion provides embedding providers for CIE's indexing
// pipeline.
//
// Parsing and extraction live in pkg/ingest (Tree-sitter based), call
// graph storage lives in pkg/store, and the orchestration that ties
// parsing, embedding, and storage together lives in pkg/pipeline and
// pkg/sync. This package's sole remaining concern is turning a chunk of
// code or doc text into a vector: the EmbeddingProvider interface and
// its concrete backends (Nomic, Ollama, OpenAI, llama.cpp/Qodo, and a
// deterministic Mock for tests).
//
// # Choosing a provider
//
//	provider, err := ingestion.CreateEmbeddingProvider(cfg.Embedding.Provider, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vec, err := provider.Embed(ctx, "func Foo() error { ... }")
//
// CreateEmbeddingProvider reads the provider-specific connection details
// (API keys, base URLs, model names) from environment variables so that
// swapping providers never requires a code change, only a different
// .env. See each provider's doc comment for its variables.
//
// pkg/pipeline.ProviderEmbedder wraps whichever EmbeddingProvider is
// selected here with retry-with-backoff and graceful degradation when a
// snippet is too large for the provider's context window; this package
// itself does not retry.
package ingestion

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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/kraklabs/cie/internal/metrics"
	"github.com/kraklabs/cie/pkg/embed"
	"github.com/kraklabs/cie/pkg/graphid"
	"github.com/kraklabs/cie/pkg/ingestion"
)

// ErrContentTooLarge is the sentinel an Embedder returns when the
// provider rejected text for exceeding its context window. embedWithFallback
// unwraps for this (via errors.Is) to decide whether to keep shrinking the
// input or propagate the failure as-is.
var ErrContentTooLarge = errors.New("pipeline: content exceeds embedder context size")

// Embedder turns prepared text into a vector. Unlike pkg/llm.Provider (text
// generation/chat only), this has no teacher analog — the provider-specific
// HTTP clients in pkg/ingestion/embedding.go are adapted into it via
// ProviderEmbedder rather than reused directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ProviderEmbedder adapts a teacher ingestion.EmbeddingProvider (Nomic,
// Ollama, OpenAI, llama.cpp, or the mock) to the Embedder interface,
// classifying provider-specific "too large" HTTP errors into
// ErrContentTooLarge so embedWithFallback can react to them uniformly.
type ProviderEmbedder struct {
	Provider ingestion.EmbeddingProvider
	model    string
}

// NewProviderEmbedder wraps an already-constructed EmbeddingProvider.
// Build the provider itself with ingestion.CreateEmbeddingProvider.
func NewProviderEmbedder(provider ingestion.EmbeddingProvider, model string) *ProviderEmbedder {
	return &ProviderEmbedder{Provider: provider, model: model}
}

func (p *ProviderEmbedder) Model() string { return p.model }

// maxEmbedRetries and embedRetryBaseDelay ground the retry ladder adapted
// from the teacher's isRetryableEmbeddingError/computeBackoffWithJitter
// pair in pkg/ingestion/embedding.go: exponential backoff with full jitter,
// capped at a handful of attempts so a dead provider fails fast.
const maxEmbedRetries = 3

var embedRetryBaseDelay = 200 * time.Millisecond

func (p *ProviderEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxEmbedRetries; attempt++ {
		vec, err := p.Provider.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if isOverflowError(err) {
			return nil, fmt.Errorf("%w: %v", ErrContentTooLarge, err)
		}
		lastErr = err
		if attempt == maxEmbedRetries || !isRetryableError(err) {
			return nil, err
		}
		metrics.RecordEmbedRetry()
		delay := embedRetryBaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(rand.Int63n(int64(delay) + 1))):
		}
	}
	return nil, lastErr
}

// retryableErrorMarkers are the same transient-failure substrings the
// teacher's isRetryableEmbeddingError classified network/timeout and HTTP
// 429/5xx errors by, since none of the embedding providers return typed
// errors for these conditions.
var retryableErrorMarkers = []string{
	"timeout", "temporarily unavailable", "connection refused",
	"connection reset", "deadline exceeded", "eof",
	" 429", " 500", " 502", " 503", " 504",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// overflowMarkers are substrings seen in the teacher's HTTP embedding
// clients (OpenAI, Nomic, Ollama, llama.cpp) when a request is rejected for
// exceeding the model's context window. None of those clients return a
// typed error for this, so classification is done on the wrapped message.
var overflowMarkers = []string{
	"maximum context length",
	"context length exceeded",
	"context_length_exceeded",
	"too many tokens",
	"input is too long",
	"token limit",
	"request entity too large",
	"413",
}

func isOverflowError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range overflowMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// minSnippetLength is the floor embedWithFallback halves down to before
// giving up on the snippet entirely and moving to metadata-only content.
const minSnippetLength = 100

// embedWithFallback implements the progressive degradation ladder: try the
// full prepared content, then (for Class nodes) collapse method bodies,
// then repeatedly halve the snippet, then fall back to bare metadata, and
// finally surface a terminal error if even that overflows. Every attempt
// checks the cache first, keyed by the hash of the exact text attempted.
func embedWithFallback(ctx context.Context, embedder Embedder, cache embed.Cache, nodeType, name, filePath, snippet string) (vec []float32, hash string, err error) {
	prepared := preparedFor(nodeType, name, filePath, snippet)
	if vec, hash, err = tryEmbed(ctx, embedder, cache, prepared); err == nil {
		return vec, hash, nil
	} else if !errors.Is(err, ErrContentTooLarge) {
		return nil, "", err
	}
	metrics.RecordEmbedOverflow()

	if nodeType == "Class" {
		collapsed := collapseMethodBodies(snippet)
		if collapsed != snippet {
			prepared = preparedFor(nodeType, name, filePath, collapsed)
			if vec, hash, err = tryEmbed(ctx, embedder, cache, prepared); err == nil {
				return vec, hash, nil
			} else if !errors.Is(err, ErrContentTooLarge) {
				return nil, "", err
			}
			metrics.RecordEmbedOverflow()
			snippet = collapsed
		}
	}

	for len(snippet) >= minSnippetLength*2 {
		snippet = snippet[:len(snippet)/2]
		prepared = preparedFor(nodeType, name, filePath, snippet)
		if vec, hash, err = tryEmbed(ctx, embedder, cache, prepared); err == nil {
			return vec, hash, nil
		} else if !errors.Is(err, ErrContentTooLarge) {
			return nil, "", err
		}
		metrics.RecordEmbedOverflow()
	}

	metaOnly := fmt.Sprintf("// %s: %s\n// File: %s", nodeType, name, filePath)
	if vec, hash, err = tryEmbed(ctx, embedder, cache, metaOnly); err == nil {
		return vec, hash, nil
	} else if !errors.Is(err, ErrContentTooLarge) {
		return nil, "", err
	}
	metrics.RecordEmbedOverflow()

	return nil, "", fmt.Errorf("failed to embed %s:%s even with minimal content", filePath, name)
}

func preparedFor(nodeType, name, filePath, snippet string) string {
	return fmt.Sprintf("// %s: %s\n// File: %s\n\n%s", nodeType, name, filePath, snippet)
}

// tryEmbed checks the cache for text's content hash before calling the
// embedder, and populates the cache on a fresh embed.
func tryEmbed(ctx context.Context, embedder Embedder, cache embed.Cache, text string) ([]float32, string, error) {
	hash := graphid.ContentHash(text)
	if cache != nil {
		if vec, ok, err := cache.Get(ctx, hash); err == nil && ok {
			return vec, hash, nil
		}
	}
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, "", err
	}
	if cache != nil {
		if err := cache.Set(ctx, hash, vec); err != nil {
			slog.Default().Warn("pipeline.embed_cache.set_failed", "hash", hash, "err", err)
		}
	}
	return vec, hash, nil
}

// collapseMethodBodies replaces every function/method body in snippet with
// "{ ... }", detecting a body's opening brace by what precedes it: a
// closing paren (`)`), a return-type annotation (`): Type`), or an arrow
// (`=>`) — the same heuristic spec.md describes for shrinking a Class
// node's snippet before falling back to halving it.
func collapseMethodBodies(snippet string) string {
	var out strings.Builder
	i := 0
	for i < len(snippet) {
		if snippet[i] == '{' && isBodyOpenBrace(snippet, i) {
			depth := 1
			j := i + 1
			for j < len(snippet) && depth > 0 {
				switch snippet[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			out.WriteString("{ ... }")
			i = j
			continue
		}
		out.WriteByte(snippet[i])
		i++
	}
	return out.String()
}

// isBodyOpenBrace reports whether the '{' at index i closes a parameter
// list or return-type annotation, i.e. looks like the start of a
// function/method body rather than a struct, object, or block literal.
func isBodyOpenBrace(s string, i int) bool {
	j := i - 1
	for j >= 0 && (s[j] == ' ' || s[j] == '\t') {
		j--
	}
	if j < 0 {
		return false
	}
	if s[j] == ')' {
		return true
	}
	if j >= 1 && s[j-1] == '=' && s[j] == '>' {
		return true
	}
	if s[j] != ':' {
		k := j
		for k >= 0 && s[k] != ':' && s[k] != '\n' && s[k] != '{' && s[k] != '}' {
			k--
		}
		if k >= 0 && s[k] == ':' {
			m := k - 1
			for m >= 0 && (s[m] == ' ' || s[m] == '\t') {
				m--
			}
			if m >= 0 && s[m] == ')' {
				return true
			}
		}
	}
	return false
}

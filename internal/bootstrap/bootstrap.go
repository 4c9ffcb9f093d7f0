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

// Session and Open implement the startup data-flow doc.go describes:
// Store opens -> Manifest loads -> ProjectRegistry builds -> SyncEngine
// computes diff -> IndexPipeline updates Store + SearchBackend -> Watcher
// starts. A prior revision of this file wired CozoDB's EmbeddedBackend
// directly via ProjectConfig/InitProject/OpenProject/ListProjects; that
// storage engine has been replaced project-wide by pkg/store (SQLite)
// plus pkg/search (hybrid BM25/vector) and pkg/embed (the embedding
// cache), so Session now constructs and holds those instead.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	cfgpkg "github.com/kraklabs/cie/internal/config"
	cieerrors "github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/pkg/embed"
	"github.com/kraklabs/cie/pkg/ingest"
	"github.com/kraklabs/cie/pkg/ingest/tsquery"
	"github.com/kraklabs/cie/pkg/ingestion"
	"github.com/kraklabs/cie/pkg/manifest"
	"github.com/kraklabs/cie/pkg/pipeline"
	"github.com/kraklabs/cie/pkg/registry"
	"github.com/kraklabs/cie/pkg/search"
	"github.com/kraklabs/cie/pkg/store"
	"github.com/kraklabs/cie/pkg/sync"
	"github.com/kraklabs/cie/pkg/watch"
)

// manifestFileName names the manifest file spec.md's cache directory
// layout keeps alongside the config-selected storage path.
const manifestFileName = "manifest.json"

// Session holds every long-lived component a project needs once open:
// the store, search backend, embedding cache, registry, and the
// pipeline/sync/watch layers built on top of them. Close releases every
// held resource and the spawn lock, in reverse acquisition order.
type Session struct {
	Root   string
	Config *cfgpkg.Config

	Store  store.Store
	Search search.Backend
	Cache  embed.Cache

	Registry   *registry.Registry
	Pipeline   *pipeline.Pipeline
	SyncEngine *sync.Engine
	Watcher    *watch.Watcher

	manifest *manifest.Manifest
	lock     *SpawnLock
	logger   *slog.Logger
}

// Open loads the project config at root, acquires the spawn-exclusion
// lock over its cache directory, opens the store (creating its schema on
// first use), and builds the registry/pipeline/sync/watch stack. It does
// not run Sync or start the Watcher; call Sync and StartWatching
// explicitly once the caller is ready.
func Open(root string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := cfgpkg.Load(cfgpkg.ConfigPath(root))
	if err != nil {
		return nil, cieerrors.NewConfigError(
			"Cannot load project configuration",
			err.Error(),
			"Run 'cie init' to create a new .cie/project.yaml",
			err,
		)
	}

	cacheDir := cfgpkg.ConfigDir(root)
	lock := NewSpawnLock(cacheDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, cieerrors.NewPermissionError(
			"Cannot acquire the project lock",
			err.Error(),
			fmt.Sprintf("Check permissions on %s", lock.Path()),
			err,
		)
	}
	if !acquired {
		return nil, cieerrors.NewDatabaseError(
			"Another cie process already has this project open",
			fmt.Sprintf("%s is held by another process", lock.Path()),
			"Stop the other 'cie watch' or 'cie index' process, or remove the lock file if it is stale",
			nil,
		)
	}

	st, err := openStore(cfg, root)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	sb, err := search.NewHybridBackend()
	if err != nil {
		st.Close()
		lock.Unlock()
		return nil, cieerrors.NewInternalError(
			"Cannot initialize the search backend",
			err.Error(),
			"This is a bug. Please report it.",
			err,
		)
	}

	model := embeddingModel(cfg.Embedding.Provider)
	cache, err := embed.Open(cacheDir, model)
	if err != nil {
		sb.Close()
		st.Close()
		lock.Unlock()
		return nil, cieerrors.NewDatabaseError(
			"Cannot open the embedding cache",
			err.Error(),
			fmt.Sprintf("Check permissions on %s", cacheDir),
			err,
		)
	}

	m, err := manifest.Load(filepath.Join(cacheDir, manifestFileName))
	if err != nil {
		cache.Close()
		sb.Close()
		st.Close()
		lock.Unlock()
		return nil, cieerrors.NewDatabaseError(
			"Cannot load the file manifest",
			err.Error(),
			"Run 'cie reset --yes' to rebuild the project from scratch",
			err,
		)
	}

	packages := make([]registry.PackageConfig, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		packages = append(packages, registry.PackageConfig{
			Name: p.Name,
			Root: filepath.Join(root, p.Path),
		})
	}
	reg := registry.New(packages, osFileExists, os.ReadFile)

	provider, err := ingestion.CreateEmbeddingProvider(cfg.Embedding.Provider, logger)
	if err != nil {
		cache.Close()
		sb.Close()
		st.Close()
		lock.Unlock()
		return nil, cieerrors.NewConfigError(
			"Cannot initialize the embedding provider",
			err.Error(),
			"Set embedding.provider to one of mock/nomic/ollama/openai/llamacpp in .cie/project.yaml, and export the provider's API key if required",
			err,
		)
	}
	embedder := pipeline.NewProviderEmbedder(provider, model)

	extractor := ingest.NewExtractor(tsquery.New())
	p := pipeline.New(st, sb, cache, embedder, extractor, reg, logger)
	se := sync.New(p, reg, st, sb, packages, logger)

	sess := &Session{
		Root:       root,
		Config:     cfg,
		Store:      st,
		Search:     sb,
		Cache:      cache,
		Registry:   reg,
		Pipeline:   p,
		SyncEngine: se,
		manifest:   m,
		lock:       lock,
		logger:     logger,
	}
	sess.Watcher = watch.New(watchOptions(cfg, root), sess.Reindex, logger)
	return sess, nil
}

// openStore opens the configured storage backend. Only "sqlite" has a
// pkg/store.Store implementation today; "memgraph" is accepted by
// internal/config.Validate for forward compatibility but rejected here
// until a Memgraph-backed Store exists.
func openStore(cfg *cfgpkg.Config, root string) (store.Store, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		path := cfg.Storage.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		st, err := store.OpenSQLite(path)
		if err != nil {
			if tooNew, ok := err.(*store.ErrSchemaTooNew); ok {
				return nil, cieerrors.NewSchemaTooNewError(tooNew.DBVersion, tooNew.CodeVersion, err)
			}
			return nil, cieerrors.NewDatabaseError(
				"Cannot open the graph store",
				err.Error(),
				fmt.Sprintf("Check permissions on %s, or run 'cie reset --yes' to rebuild it", path),
				err,
			)
		}
		return st, nil
	case "memgraph":
		return nil, cieerrors.NewConfigError(
			"Memgraph storage is not yet supported",
			"storage.type is \"memgraph\", but this build only ships the SQLite-backed store",
			"Set storage.type to \"sqlite\" in .cie/project.yaml",
			nil,
		)
	default:
		return nil, cieerrors.NewConfigError(
			"Unrecognized storage.type",
			fmt.Sprintf("storage.type %q is not one of sqlite, memgraph", cfg.Storage.Type),
			"Set storage.type to \"sqlite\" in .cie/project.yaml",
			nil,
		)
	}
}

// embeddingModel resolves the model name CreateEmbeddingProvider would
// pick for providerType, duplicating just its env-var default logic
// (CreateEmbeddingProvider itself returns only the constructed provider,
// not the model string pipeline.ProviderEmbedder needs for Model()).
func embeddingModel(providerType string) string {
	switch providerType {
	case "nomic":
		if m := os.Getenv("NOMIC_MODEL"); m != "" {
			return m
		}
		return "nomic-embed-text-v1.5"
	case "ollama", "local_model":
		if m := os.Getenv("OLLAMA_EMBED_MODEL"); m != "" {
			return m
		}
		return "nomic-embed-text"
	case "openai":
		if m := os.Getenv("OPENAI_EMBED_MODEL"); m != "" {
			return m
		}
		return "text-embedding-3-small"
	case "llamacpp", "qodo":
		return "llamacpp"
	default:
		return "mock"
	}
}

// watchOptions translates internal/config.WatchConfig into pkg/watch.Options.
func watchOptions(cfg *cfgpkg.Config, root string) watch.Options {
	opts := watch.DefaultOptions(root)
	if cfg.Watch.Polling {
		opts.Mode = watch.ModePolling
		if d, err := time.ParseDuration(cfg.Watch.PollingInterval); err == nil {
			opts.PollInterval = d
		}
	} else if cfg.Watch.DebounceInterval != "" {
		if d, err := time.ParseDuration(cfg.Watch.DebounceInterval); err == nil {
			opts.DebounceInterval = d
		}
	}
	opts.ExcludeGlobs = append(append([]string{}, cfg.Watch.ExcludeDirectories...), cfg.Watch.ExcludeFiles...)
	return opts
}

// osFileExists is registry.FileExister backed by the real filesystem.
func osFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Sync runs one SyncEngine reconciliation against the loaded manifest,
// the startup step that catches anything that changed while cie was not
// running.
func (s *Session) Sync(ctx context.Context) (*sync.Result, error) {
	return s.SyncEngine.Sync(ctx, s.manifest)
}

// FileCount returns the number of files the manifest currently tracks as
// indexed, for reporting by 'cie watch' without reaching into the
// manifest's internal map.
func (s *Session) FileCount() int {
	return len(s.manifest.Files)
}

// StartWatching starts the Watcher over the project root.
func (s *Session) StartWatching(ctx context.Context) error {
	return s.Watcher.Start(ctx)
}

// Reindex is the Watcher's Reindexer: for each event it re-reads and
// re-indexes created/modified files through the Pipeline, removes
// deleted files from the Store and SearchBackend, and persists the
// updated manifest. Per-file errors are logged and do not abort the
// batch, matching pkg/sync's "never fatal" policy for the same
// operations run at startup. Events carry the same absolute,
// package-root-prefixed path pkg/sync's osListFiles produces (the
// Watcher is rooted at the project root, same as every configured
// PackageConfig.Root), so files stay addressable by the identical key
// regardless of whether they were last touched by Sync or by Reindex.
func (s *Session) Reindex(ctx context.Context, events []watch.FileEvent) error {
	updated := make(map[string]manifest.FileState)
	var deleted []string

	for _, ev := range events {
		path := ev.Path

		switch ev.Operation {
		case watch.OpDelete:
			if err := s.Store.RemoveFile(ctx, path); err != nil {
				s.logger.Warn("bootstrap.reindex.remove_failed", "path", path, "err", err)
				continue
			}
			if err := s.Search.RemoveByFile(ctx, path); err != nil {
				s.logger.Warn("bootstrap.reindex.search_remove_failed", "path", path, "err", err)
			}
			deleted = append(deleted, path)

		default:
			info, err := os.Stat(path)
			if err != nil {
				s.logger.Warn("bootstrap.reindex.stat_failed", "path", path, "err", err)
				continue
			}
			src, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn("bootstrap.reindex.read_failed", "path", path, "err", err)
				continue
			}
			pkgName := ""
			if owner := s.Registry.OwningPackage(path); owner != nil {
				pkgName = owner.Name
			}
			if _, err := s.Pipeline.IndexFile(ctx, pipeline.FileInput{Path: path, Package: pkgName, Source: src}); err != nil {
				s.logger.Warn("bootstrap.reindex.index_failed", "path", path, "err", err)
				continue
			}
			updated[path] = manifest.FileState{ModTime: info.ModTime(), Size: info.Size()}
		}
	}

	s.manifest.Update(updated, deleted)
	if err := s.manifest.Save(); err != nil {
		return fmt.Errorf("bootstrap: save manifest: %w", err)
	}
	return nil
}

// Close releases every resource Open acquired, in reverse order, and
// stops the Watcher if it was started.
func (s *Session) Close() error {
	if s.Watcher != nil {
		s.Watcher.Stop()
	}
	var firstErr error
	if err := s.Cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Search.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

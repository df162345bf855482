// Copyright 2026 The Lemmadex Authors
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

// Command server runs the lemmadex indexing service: a crawler and
// inverted-index builder controlled over a JSON HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/config"
	"github.com/lemmadex/lemmadex/internal/fetch"
	"github.com/lemmadex/lemmadex/internal/indexer"
	"github.com/lemmadex/lemmadex/internal/lemma"
	"github.com/lemmadex/lemmadex/internal/server"
	"github.com/lemmadex/lemmadex/internal/store"
	"github.com/lemmadex/lemmadex/internal/urlx"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML configuration file")
		host       = flag.String("host", "", "listen host (overrides config)")
		port       = flag.Int("port", 0, "listen port (overrides config)")
		dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	)
	flag.Parse()

	if err := run(*configPath, *host, *port, *dbPath); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(configPath, host string, port int, dbPath string) error {
	// The default config file is optional; a named one must exist.
	if configPath == "config.yaml" {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			configPath = ""
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	analyzer, err := lemma.NewAnalyzer()
	if err != nil {
		return fmt.Errorf("initializing analyzer: %w", err)
	}

	skip, err := urlx.NewSkipFilter(cfg.Indexing.SkipExtensions)
	if err != nil {
		return fmt.Errorf("compiling skip filters: %w", err)
	}

	fetcher := fetch.New(fetch.WithTimeout(cfg.Indexing.RequestTimeout.Std()))
	pageURLs := cache.NewPageURLCache(cfg.Caches.PageURL.Max, cfg.Caches.PageURL.IdleTTL.Std())
	lemmaCache := cache.NewLemmaCache(st, cfg.Caches.Lemma.Max, cfg.Caches.Lemma.IdleTTL.Std())
	writer := indexer.NewWriter(st, lemmaCache, cfg.Indexing.BatchSize)

	coordinator := indexer.NewCoordinator(indexer.Deps{
		Store:       st,
		Fetcher:     fetcher,
		Analyzer:    analyzer,
		Writer:      writer,
		PageURLs:    pageURLs,
		LemmaCache:  lemmaCache,
		Skip:        skip,
		Sink:        indexer.NewSink(),
		Sites:       cfg.Sites,
		Parallelism: cfg.Indexing.Parallelism,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(coordinator)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("running API server: %w", err)
	}

	// An active run keeps writing after the listener closes; let it wind
	// down before the store does.
	if coordinator.Running() {
		log.Printf("server: stopping active indexing run")
		if err := coordinator.StopIndexing(); err == nil {
			coordinator.Wait()
		}
	}
	log.Printf("server: shutdown complete")
	return nil
}

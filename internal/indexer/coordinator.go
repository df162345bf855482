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

// Package indexer runs full-site indexing and single-page re-indexing over
// the crawl, lemma and store layers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/config"
	"github.com/lemmadex/lemmadex/internal/crawl"
	"github.com/lemmadex/lemmadex/internal/fetch"
	"github.com/lemmadex/lemmadex/internal/lemma"
	"github.com/lemmadex/lemmadex/internal/store"
	"github.com/lemmadex/lemmadex/internal/urlx"
)

var (
	// ErrAlreadyRunning reports a start or re-index request while a full
	// run is active.
	ErrAlreadyRunning = errors.New("indexing is already running")
	// ErrNotRunning reports a stop request with no active run.
	ErrNotRunning = errors.New("indexing is not running")
	// ErrOutOfScope reports a page URL outside every configured site.
	ErrOutOfScope = errors.New("URL is outside configured sites")
)

// interruptedError is recorded on sites whose crawl a stop request cut
// short.
const interruptedError = "Indexing interrupted by user"

// defaultDrainTimeout bounds how long the coordinator waits for crawl
// workers after all site tasks were dispatched.
const defaultDrainTimeout = 2 * time.Hour

// Coordinator owns the indexing lifecycle: one full run at a time, plus
// single-page re-indexing while idle.
type Coordinator struct {
	store      *store.Store
	fetcher    *fetch.Fetcher
	analyzer   *lemma.Analyzer
	writer     *Writer
	pageURLs   *cache.PageURLCache
	lemmaCache *cache.LemmaCache
	skip       *urlx.SkipFilter
	sink       *Sink
	sites      []config.Site

	parallelism  int
	drainTimeout time.Duration

	running atomic.Bool
	stop    atomic.Bool
	runWG   sync.WaitGroup
}

// Deps carries the collaborators a Coordinator needs.
type Deps struct {
	Store       *store.Store
	Fetcher     *fetch.Fetcher
	Analyzer    *lemma.Analyzer
	Writer      *Writer
	PageURLs    *cache.PageURLCache
	LemmaCache  *cache.LemmaCache
	Skip        *urlx.SkipFilter
	Sink        *Sink
	Sites       []config.Site
	Parallelism int
}

// NewCoordinator wires a Coordinator from its dependencies.
func NewCoordinator(d Deps) *Coordinator {
	parallelism := d.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Coordinator{
		store:        d.Store,
		fetcher:      d.Fetcher,
		analyzer:     d.Analyzer,
		writer:       d.Writer,
		pageURLs:     d.PageURLs,
		lemmaCache:   d.LemmaCache,
		skip:         d.Skip,
		sink:         d.Sink,
		sites:        d.Sites,
		parallelism:  parallelism,
		drainTimeout: defaultDrainTimeout,
	}
}

// Running reports whether a full run is active.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Errors returns the failures recorded during the current or last run.
func (c *Coordinator) Errors() []Entry {
	return c.sink.Entries()
}

// StartIndexing begins a full run of all configured sites and returns once
// the run is accepted. Previous indexing data is dropped first.
func (c *Coordinator) StartIndexing() error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.stop.Store(false)
	c.sink.Clear()
	c.runWG.Add(1)
	go func() {
		defer c.runWG.Done()
		c.run()
	}()
	return nil
}

// StopIndexing raises the stop flag and returns immediately; site tasks
// observe it cooperatively and finish as FAILED with an interrupted error.
func (c *Coordinator) StopIndexing() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	c.stop.Store(true)
	return nil
}

// Wait blocks until the active run, if any, has finished. Used by shutdown
// and tests.
func (c *Coordinator) Wait() {
	c.runWG.Wait()
}

func (c *Coordinator) run() {
	defer func() {
		c.pageURLs.Clear()
		c.lemmaCache.Clear()
		c.running.Store(false)
	}()

	started := time.Now()
	log.Printf("indexer: starting full run over %d sites", len(c.sites))

	if err := c.store.ResetAll(); err != nil {
		log.Printf("indexer: resetting previous data: %v", err)
		c.sink.Record("RESET_ERROR", err.Error())
		return
	}
	// The run starts from a truncated database; sentinel entries left by
	// earlier single-page indexing must not suppress pages now.
	c.pageURLs.Clear()
	c.lemmaCache.Clear()

	rows := make([]*store.Site, 0, len(c.sites))
	for _, s := range c.sites {
		row := &store.Site{
			URL:        s.URL,
			Name:       s.Name,
			Status:     store.StatusIndexing,
			StatusTime: time.Now(),
		}
		if err := c.store.CreateSite(row); err != nil {
			log.Printf("indexer: creating site row %s: %v", s.URL, err)
			c.sink.Record("SITE_ERROR", err.Error())
			continue
		}
		rows = append(rows, row)
	}

	pool := crawl.NewPool(min(c.parallelism, len(rows)))
	for _, row := range rows {
		row := row
		pool.Submit(func() {
			c.indexSite(row)
		})
	}

	done := make(chan struct{})
	go func() {
		pool.Drain()
		close(done)
	}()
	select {
	case <-done:
		pool.Close()
	case <-time.After(c.drainTimeout):
		c.stop.Store(true)
		c.sink.Record("POOL_TERMINATION_FORCED",
			fmt.Sprintf("crawl workers still busy after %s", c.drainTimeout))
		<-done
		pool.Close()
	}

	log.Printf("indexer: full run finished in %s", time.Since(started).Round(time.Millisecond))
}

// indexSite crawls one site and records its terminal status.
func (c *Coordinator) indexSite(site *store.Site) {
	sched := &crawl.Scheduler{
		Fetcher:     c.fetcher,
		Store:       c.store,
		Analyzer:    c.analyzer,
		Writer:      c.writer,
		Skip:        c.skip,
		PageURLs:    c.pageURLs,
		Sink:        c.sink,
		Parallelism: c.parallelism,
		Stopped:     c.stop.Load,
	}

	err := sched.CrawlSite(context.Background(), site)
	switch {
	case errors.Is(err, crawl.ErrStopped) || (err == nil && c.stop.Load()):
		c.setStatus(site, store.StatusFailed, interruptedError)
	case err != nil:
		msg := fmt.Sprintf("failed to fetch site content: %v", err)
		c.sink.Record("SITE_ERROR", msg)
		c.setStatus(site, store.StatusFailed, msg)
	default:
		c.setStatus(site, store.StatusIndexed, "")
	}
}

func (c *Coordinator) setStatus(site *store.Site, status, lastError string) {
	if err := c.store.UpdateSiteStatus(site.ID, status, lastError); err != nil {
		log.Printf("indexer: updating status of %s: %v", site.Name, err)
	}
}

// IndexPage fetches and re-indexes one page while no full run is active.
// An existing page's old index rows are removed and their lemma frequencies
// rebalanced before the new content is written.
func (c *Coordinator) IndexPage(ctx context.Context, rawURL string) error {
	normalized, err := urlx.Normalize(rawURL)
	if err != nil {
		return urlx.ErrMalformedURL
	}
	if !urlx.SupportedScheme(normalized) {
		return urlx.ErrMalformedURL
	}
	if c.running.Load() {
		return ErrAlreadyRunning
	}

	site, err := c.siteFor(normalized)
	if err != nil {
		return err
	}

	res, err := c.fetcher.Fetch(ctx, normalized)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", normalized, err)
	}

	path, err := urlx.SitePath(normalized)
	if err != nil {
		return urlx.ErrMalformedURL
	}

	page, err := c.store.FindPage(site.ID, path)
	if err != nil {
		return fmt.Errorf("looking up page %s: %w", path, err)
	}
	if page != nil {
		removed, err := c.store.DeleteIndicesForPage(page.ID)
		if err != nil {
			return fmt.Errorf("removing old indices of %s: %w", path, err)
		}
		if err := c.store.AdjustLemmaFrequencies(removed); err != nil {
			return fmt.Errorf("rebalancing lemma frequencies of %s: %w", path, err)
		}
		// Cached lemma handles predate the rebalance.
		c.lemmaCache.Clear()
		page.Code = res.StatusCode
		page.Content = string(res.Body)
		if err := c.store.SavePage(page); err != nil {
			return fmt.Errorf("updating page %s: %w", path, err)
		}
	} else {
		page = &store.Page{
			SiteID:  site.ID,
			Path:    path,
			Code:    res.StatusCode,
			Content: string(res.Body),
		}
		if err := c.store.CreatePage(page); err != nil {
			return fmt.Errorf("storing page %s: %w", path, err)
		}
	}
	c.pageURLs.Mark(normalized)

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		counts := c.analyzer.CollectLemmas(page.Content)
		if err := c.writer.SaveLemmasAndIndices(site, page, counts); err != nil {
			return fmt.Errorf("saving lemmas of %s: %w", path, err)
		}
	}
	if err := c.store.TouchSiteStatusTime(site.ID); err != nil {
		log.Printf("indexer: touching status time of %s: %v", site.Name, err)
	}
	return nil
}

// siteFor resolves the site row a page URL belongs to. The configured site
// list is authoritative; a matching site without a row yet gets one created,
// so single pages can be indexed before the first full run.
func (c *Coordinator) siteFor(pageURL string) (*store.Site, error) {
	var matched *config.Site
	for i := range c.sites {
		if urlx.Internal(pageURL, c.sites[i].URL) {
			matched = &c.sites[i]
			break
		}
	}
	if matched == nil {
		return nil, ErrOutOfScope
	}

	site, err := c.store.FindSiteByURL(matched.URL)
	if err != nil {
		return nil, err
	}
	if site == nil {
		host, hostErr := urlx.Hostname(matched.URL)
		if hostErr == nil {
			site, err = c.store.FindSiteByHost(strings.TrimPrefix(host, "www."))
			if err != nil {
				return nil, err
			}
		}
	}
	if site == nil {
		site = &store.Site{
			URL:        matched.URL,
			Name:       matched.Name,
			Status:     store.StatusIndexed,
			StatusTime: time.Now(),
		}
		if err := c.store.CreateSite(site); err != nil {
			return nil, fmt.Errorf("creating site row %s: %w", matched.URL, err)
		}
	}
	return site, nil
}

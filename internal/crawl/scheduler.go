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

package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/fetch"
	"github.com/lemmadex/lemmadex/internal/lemma"
	"github.com/lemmadex/lemmadex/internal/store"
	"github.com/lemmadex/lemmadex/internal/urlx"
)

// ErrStopped reports that a crawl was interrupted by a stop request.
var ErrStopped = errors.New("crawl stopped")

// PageWriter persists the lemmas and index rows of one analyzed page.
type PageWriter interface {
	SaveLemmasAndIndices(site *store.Site, page *store.Page, counts map[string]int) error
}

// ErrorSink collects page-level failures without aborting the crawl.
type ErrorSink interface {
	Record(kind, message string)
}

// Scheduler crawls one site's internal link graph breadth-first with a
// bounded worker pool.
type Scheduler struct {
	Fetcher     *fetch.Fetcher
	Store       *store.Store
	Analyzer    *lemma.Analyzer
	Writer      PageWriter
	Skip        *urlx.SkipFilter
	PageURLs    *cache.PageURLCache
	Sink        ErrorSink
	Parallelism int
	// Stopped is polled between pipeline stages; a true return abandons
	// in-flight work cooperatively.
	Stopped func() bool
}

func (s *Scheduler) stopped() bool {
	return s.Stopped != nil && s.Stopped()
}

// CrawlSite walks the site starting at its seed URL and blocks until every
// claimed page has been processed or the stop flag is raised. A seed fetch
// failure is returned; child page failures go to the sink.
func (s *Scheduler) CrawlSite(ctx context.Context, site *store.Site) error {
	seed, err := urlx.Normalize(site.URL)
	if err != nil {
		return fmt.Errorf("normalizing seed URL %q: %w", site.URL, err)
	}

	visited := NewVisited()
	visited.Claim(seed)

	pool := NewPool(s.Parallelism)
	defer pool.Close()

	// The seed runs synchronously so its failure can fail the site.
	if err := s.processPage(ctx, site, visited, pool, seed); err != nil {
		pool.Drain()
		return err
	}
	pool.Drain()

	if s.stopped() {
		return ErrStopped
	}
	return nil
}

// processPage fetches, stores and analyzes one page, then fans its internal
// links out to the pool.
func (s *Scheduler) processPage(ctx context.Context, site *store.Site, visited *Visited, pool *Pool, pageURL string) error {
	if s.stopped() {
		return ErrStopped
	}
	// Recently stored URLs skip the fetch and the database round-trip.
	if s.PageURLs != nil && s.PageURLs.Seen(pageURL) {
		return nil
	}

	res, err := s.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	if s.stopped() {
		return ErrStopped
	}

	path, err := urlx.SitePath(pageURL)
	if err != nil {
		return fmt.Errorf("deriving path of %s: %w", pageURL, err)
	}

	page, created, err := s.Store.FirstOrCreatePage(&store.Page{
		SiteID:  site.ID,
		Path:    path,
		Code:    res.StatusCode,
		Content: string(res.Body),
	})
	if err != nil {
		return fmt.Errorf("storing page %s: %w", pageURL, err)
	}
	if s.PageURLs != nil {
		s.PageURLs.Mark(pageURL)
	}
	if err := s.Store.TouchSiteStatusTime(site.ID); err != nil {
		log.Printf("crawl: touching status time of site %d: %v", site.ID, err)
	}
	if s.stopped() {
		return ErrStopped
	}

	// A path two URLs canonicalize to is analyzed once per run.
	if created && indexable(res) {
		counts := s.Analyzer.CollectLemmas(page.Content)
		if err := s.Writer.SaveLemmasAndIndices(site, page, counts); err != nil {
			return fmt.Errorf("saving lemmas of %s: %w", pageURL, err)
		}
	}
	if s.stopped() {
		return ErrStopped
	}

	for _, child := range s.extractLinks(site, res) {
		if s.stopped() {
			return ErrStopped
		}
		if !visited.Claim(child) {
			continue
		}
		child := child
		pool.Submit(func() {
			if err := s.processPage(ctx, site, visited, pool, child); err != nil && !errors.Is(err, ErrStopped) {
				log.Printf("crawl: %s: %v", site.Name, err)
				if s.Sink != nil {
					s.Sink.Record("PAGE_ERROR", err.Error())
				}
			}
		})
	}
	return nil
}

// extractLinks returns the normalized internal links of a fetched document,
// resolved against its final URL after redirects.
func (s *Scheduler) extractLinks(site *store.Site, res *fetch.Result) []string {
	if !isHTML(res.ContentType) {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		resolved, err := urlx.ResolveRef(res.FinalURL, href)
		if err != nil {
			return
		}
		if !urlx.SupportedScheme(resolved) {
			return
		}
		if s.Skip != nil && s.Skip.Matches(resolved) {
			return
		}
		if !urlx.Internal(resolved, site.URL) {
			return
		}
		links = append(links, resolved)
	})
	return links
}

// indexable reports whether a fetched page's text should be analyzed:
// successful status and textual content.
func indexable(res *fetch.Result) bool {
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return false
	}
	ct := strings.ToLower(res.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") || strings.Contains(ct, "text/plain")
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

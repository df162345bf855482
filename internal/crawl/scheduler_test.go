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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/fetch"
	"github.com/lemmadex/lemmadex/internal/lemma"
	"github.com/lemmadex/lemmadex/internal/store"
	"github.com/lemmadex/lemmadex/internal/urlx"
)

// countingHandler serves fixed pages and counts requests per path.
type countingHandler struct {
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
}

func newCountingHandler(pages map[string]string) *countingHandler {
	return &countingHandler{hits: make(map[string]int), pages: pages}
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.hits[r.URL.Path]++
	body, ok := h.pages[r.URL.Path]
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (h *countingHandler) hitCount(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

// recordingWriter captures per-page lemma counts instead of persisting them.
type recordingWriter struct {
	mu    sync.Mutex
	pages map[string]map[string]int
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{pages: make(map[string]map[string]int)}
}

func (w *recordingWriter) SaveLemmasAndIndices(site *store.Site, page *store.Page, counts map[string]int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[page.Path] = counts
	return nil
}

func newTestScheduler(t *testing.T, writer PageWriter) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	analyzer, err := lemma.NewAnalyzer()
	require.NoError(t, err)
	skip, err := urlx.NewSkipFilter(nil)
	require.NoError(t, err)

	return &Scheduler{
		Fetcher:     fetch.New(),
		Store:       st,
		Analyzer:    analyzer,
		Writer:      writer,
		Skip:        skip,
		Parallelism: 4,
	}, st
}

func createSite(t *testing.T, st *store.Store, url string) *store.Site {
	t.Helper()
	site := &store.Site{URL: url, Name: "Test", Status: store.StatusIndexing, StatusTime: time.Now()}
	require.NoError(t, st.CreateSite(site))
	return site
}

func TestCrawlSiteVisitsInternalPages(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/":    `<html><body><a href="/a">a</a> <a href="/b">b</a></body></html>`,
		"/a":   `<html><body>apple <a href="/">home</a></body></html>`,
		"/b":   `<html><body>banana <a href="/a">a</a></body></html>`,
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	writer := newRecordingWriter()
	sched, st := newTestScheduler(t, writer)
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	assert.Equal(t, 1, h.hitCount("/"))
	assert.Equal(t, 1, h.hitCount("/a"))
	assert.Equal(t, 1, h.hitCount("/b"))

	n, err := st.CountPages(site.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	assert.Contains(t, writer.pages["/a"], "appl")
	assert.Contains(t, writer.pages["/b"], "banana")
}

func TestCrawlSiteCanonicalizesLinkVariants(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/":  `<html><body><a href="/a">one</a> <a href="/a/">two</a> <a href="/a#frag">three</a></body></html>`,
		"/a": `<html><body>target</body></html>`,
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	// All three hrefs canonicalize to one URL: fetched once, stored once.
	assert.Equal(t, 1, h.hitCount("/a"))
	page, err := st.FindPage(site.ID, "/a")
	require.NoError(t, err)
	require.NotNil(t, page)
	n, err := st.CountPages(site.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCrawlSiteIgnoresExternalLinks(t *testing.T) {
	other := newCountingHandler(map[string]string{"/": "elsewhere"})
	otherTS := httptest.NewServer(other)
	defer otherTS.Close()

	h := newCountingHandler(map[string]string{
		"/": fmt.Sprintf(`<html><body><a href="%s/">external</a></body></html>`, otherTS.URL),
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	assert.Zero(t, other.hitCount("/"))
	n, err := st.CountPages(site.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCrawlSiteSkipsBinaryExtensions(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/":        `<html><body><a href="/doc.pdf">pdf</a> <a href="/logo.png">png</a> <a href="/page">page</a></body></html>`,
		"/doc.pdf": "binary",
		"/page":    "text",
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	assert.Zero(t, h.hitCount("/doc.pdf"))
	assert.Zero(t, h.hitCount("/logo.png"))
	assert.Equal(t, 1, h.hitCount("/page"))
}

func TestCrawlSiteIgnoresUnsupportedSchemes(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/": `<html><body>
<a href="mailto:me@example.test">mail</a>
<a href="javascript:void(0)">js</a>
<a href="tel:+123">tel</a>
</body></html>`,
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	n, err := st.CountPages(site.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCrawlSiteRecordsErrorPages(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/": `<html><body><a href="/gone">gone</a></body></html>`,
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	writer := newRecordingWriter()
	sched, st := newTestScheduler(t, writer)
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	page, err := st.FindPage(site.ID, "/gone")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, http.StatusNotFound, page.Code)
	// Error pages are stored but not analyzed.
	assert.NotContains(t, writer.pages, "/gone")
}

func TestCrawlSiteSeedFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	site := createSite(t, st, addr)

	err := sched.CrawlSite(context.Background(), site)
	assert.ErrorIs(t, err, fetch.ErrIO)
}

func TestCrawlSiteSkipsRecentlyStoredPages(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/":  `<html><body><a href="/a">a</a> <a href="/b">b</a></body></html>`,
		"/a": "cached elsewhere",
		"/b": "fresh",
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	sched.PageURLs = cache.NewPageURLCache(0, 0)
	site := createSite(t, st, ts.URL)

	stored, err := urlx.Normalize(ts.URL + "/a")
	require.NoError(t, err)
	sched.PageURLs.Mark(stored)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	// The marked URL is treated as already stored: no fetch, no new row.
	assert.Zero(t, h.hitCount("/a"))
	assert.Equal(t, 1, h.hitCount("/b"))
	page, err := st.FindPage(site.ID, "/a")
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestCrawlSiteMarksStoredPages(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/": `<html><body>home</body></html>`,
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	sched.PageURLs = cache.NewPageURLCache(0, 0)
	site := createSite(t, st, ts.URL)

	require.NoError(t, sched.CrawlSite(context.Background(), site))

	seed, err := urlx.Normalize(ts.URL)
	require.NoError(t, err)
	assert.True(t, sched.PageURLs.Seen(seed))
}

func TestCrawlSiteStopFlag(t *testing.T) {
	h := newCountingHandler(map[string]string{
		"/": `<html><body><a href="/a">a</a></body></html>`,
		"/a": "unreached",
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	sched, st := newTestScheduler(t, newRecordingWriter())
	sched.Stopped = func() bool { return true }
	site := createSite(t, st, ts.URL)

	err := sched.CrawlSite(context.Background(), site)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, h.hitCount("/"))
}

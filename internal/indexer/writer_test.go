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

package indexer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/store"
)

func newWriterFixture(t *testing.T) (*Writer, *store.Store, *store.Site) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	site := &store.Site{URL: "https://example.test", Name: "Test", Status: store.StatusIndexing, StatusTime: time.Now()}
	require.NoError(t, st.CreateSite(site))

	lemmas := cache.NewLemmaCache(st, 0, 0)
	return NewWriter(st, lemmas, 0), st, site
}

func newWriterPage(t *testing.T, st *store.Store, site *store.Site, path string) *store.Page {
	t.Helper()
	page, _, err := st.FirstOrCreatePage(&store.Page{SiteID: site.ID, Path: path, Code: 200})
	require.NoError(t, err)
	return page
}

func TestWriterAggregatesFrequenciesAcrossPages(t *testing.T) {
	w, st, site := newWriterFixture(t)
	pageA := newWriterPage(t, st, site, "/a")
	pageB := newWriterPage(t, st, site, "/b")

	require.NoError(t, w.SaveLemmasAndIndices(site, pageA, map[string]int{"appl": 3}))
	require.NoError(t, w.SaveLemmasAndIndices(site, pageB, map[string]int{"appl": 5}))

	lem, err := st.FindLemma(site.ID, "appl")
	require.NoError(t, err)
	require.NotNil(t, lem)
	assert.Equal(t, 8, lem.Frequency)

	indicesA, err := st.IndicesForPage(pageA.ID)
	require.NoError(t, err)
	require.Len(t, indicesA, 1)
	assert.EqualValues(t, 3, indicesA[0].Rank)
	assert.Equal(t, lem.ID, indicesA[0].LemmaID)

	indicesB, err := st.IndicesForPage(pageB.ID)
	require.NoError(t, err)
	require.Len(t, indicesB, 1)
	assert.EqualValues(t, 5, indicesB[0].Rank)
}

func TestWriterOneIndexPerPageLemma(t *testing.T) {
	w, st, site := newWriterFixture(t)
	page := newWriterPage(t, st, site, "/a")

	require.NoError(t, w.SaveLemmasAndIndices(site, page, map[string]int{
		"appl": 2, "banana": 4,
	}))

	indices, err := st.IndicesForPage(page.ID)
	require.NoError(t, err)
	assert.Len(t, indices, 2)

	seen := make(map[uint]bool)
	for _, idx := range indices {
		assert.False(t, seen[idx.LemmaID], "duplicate index for lemma %d", idx.LemmaID)
		seen[idx.LemmaID] = true
	}
}

func TestWriterFlushesInBatches(t *testing.T) {
	w, st, site := newWriterFixture(t)
	w.batchSize = 2
	page := newWriterPage(t, st, site, "/a")

	counts := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}
	require.NoError(t, w.SaveLemmasAndIndices(site, page, counts))

	indices, err := st.IndicesForPage(page.ID)
	require.NoError(t, err)
	assert.Len(t, indices, 5)

	n, err := st.CountLemmas(site.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestWriterEmptyCounts(t *testing.T) {
	w, st, site := newWriterFixture(t)
	page := newWriterPage(t, st, site, "/a")

	require.NoError(t, w.SaveLemmasAndIndices(site, page, nil))

	indices, err := st.IndicesForPage(page.ID)
	require.NoError(t, err)
	assert.Empty(t, indices)
}

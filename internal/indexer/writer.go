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
	"fmt"
	"sync"

	"github.com/lemmadex/lemmadex/internal/cache"
	"github.com/lemmadex/lemmadex/internal/store"
)

// DefaultBatchSize is the number of lemma/index rows buffered before a
// flush.
const DefaultBatchSize = 5000

// Writer persists the lemma counts of analyzed pages. Lemma rows are shared
// handles from the lemma cache; a per-site mutex serializes frequency
// accumulation so concurrent page workers never lose updates.
type Writer struct {
	store     *store.Store
	lemmas    *cache.LemmaCache
	batchSize int

	mu      sync.Mutex
	siteMus map[uint]*sync.Mutex
}

// NewWriter builds a Writer over st and the shared lemma cache. A
// non-positive batchSize falls back to DefaultBatchSize.
func NewWriter(st *store.Store, lemmas *cache.LemmaCache, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{
		store:     st,
		lemmas:    lemmas,
		batchSize: batchSize,
		siteMus:   make(map[uint]*sync.Mutex),
	}
}

func (w *Writer) siteMu(siteID uint) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	mu, ok := w.siteMus[siteID]
	if !ok {
		mu = &sync.Mutex{}
		w.siteMus[siteID] = mu
	}
	return mu
}

type pendingIndex struct {
	lemma *store.Lemma
	count int
}

// SaveLemmasAndIndices records one page's lemma counts: each lemma's site
// frequency grows by its per-page count, and one index row per (page, lemma)
// carries the count as rank. Lemma rows are flushed before their index rows
// so new rows have IDs to reference.
func (w *Writer) SaveLemmasAndIndices(site *store.Site, page *store.Page, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	mu := w.siteMu(site.ID)
	mu.Lock()
	defer mu.Unlock()

	pending := make([]pendingIndex, 0, min(len(counts), w.batchSize))
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		lemmaRows := make([]*store.Lemma, len(pending))
		for i, p := range pending {
			lemmaRows[i] = p.lemma
		}
		if err := w.store.SaveLemmasBatch(lemmaRows); err != nil {
			return fmt.Errorf("saving lemma batch: %w", err)
		}
		indexRows := make([]*store.Index, len(pending))
		for i, p := range pending {
			indexRows[i] = &store.Index{
				PageID:  page.ID,
				LemmaID: p.lemma.ID,
				Rank:    float64(p.count),
			}
		}
		if err := w.store.SaveIndicesBatch(indexRows); err != nil {
			return fmt.Errorf("saving index batch: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	for text, count := range counts {
		handle, err := w.lemmas.GetOrCreate(site.ID, text)
		if err != nil {
			return fmt.Errorf("loading lemma %q: %w", text, err)
		}
		handle.Frequency += count
		pending = append(pending, pendingIndex{lemma: handle, count: count})
		if len(pending) >= w.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

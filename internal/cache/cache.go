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

// Package cache holds the two hot-path caches of the indexing pipeline:
// page-URL presence and lemma rows. Both are bounded LRUs whose entries
// expire after an idle period, so a long run cannot pin stale rows.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lemmadex/lemmadex/internal/store"
)

// Defaults mirror the pipeline's tuning: page-URL lookups are cheap but
// frequent, lemma rows are the write hot path.
const (
	DefaultPageURLMax = 600
	DefaultLemmaMax   = 10000
	DefaultIdleTTL    = 10 * time.Minute
)

// PageURLCache remembers which normalized page URLs were already stored, so
// duplicate links skip the database round-trip.
type PageURLCache struct {
	lru *expirable.LRU[string, struct{}]
}

// NewPageURLCache builds a page-URL cache. Non-positive arguments fall back
// to the defaults.
func NewPageURLCache(max int, idleTTL time.Duration) *PageURLCache {
	if max <= 0 {
		max = DefaultPageURLMax
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &PageURLCache{lru: expirable.NewLRU[string, struct{}](max, nil, idleTTL)}
}

// Seen reports whether the URL was marked stored.
func (c *PageURLCache) Seen(url string) bool {
	_, ok := c.lru.Get(url)
	return ok
}

// Mark records the URL as stored.
func (c *PageURLCache) Mark(url string) {
	c.lru.Add(url, struct{}{})
}

// Clear drops all entries, called between indexing runs.
func (c *PageURLCache) Clear() {
	c.lru.Purge()
}

type lemmaKey struct {
	siteID uint
	lemma  string
}

// LemmaCache fronts the lemma table. GetOrCreate returns the cached row for
// (site, lemma), loading it from the store or minting a fresh unsaved row
// when none exists yet. Callers mutate Frequency on the shared row under the
// writer's site lock and flush via SaveLemmasBatch.
type LemmaCache struct {
	lru   *expirable.LRU[lemmaKey, *store.Lemma]
	store *store.Store
}

// NewLemmaCache builds a lemma cache over st. Non-positive arguments fall
// back to the defaults.
func NewLemmaCache(st *store.Store, max int, idleTTL time.Duration) *LemmaCache {
	if max <= 0 {
		max = DefaultLemmaMax
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &LemmaCache{
		lru:   expirable.NewLRU[lemmaKey, *store.Lemma](max, nil, idleTTL),
		store: st,
	}
}

// GetOrCreate returns the lemma row for (siteID, lemma), consulting the
// cache, then the store, then minting a new row with zero frequency.
func (c *LemmaCache) GetOrCreate(siteID uint, lemma string) (*store.Lemma, error) {
	key := lemmaKey{siteID: siteID, lemma: lemma}
	if row, ok := c.lru.Get(key); ok {
		return row, nil
	}
	row, err := c.store.FindLemma(siteID, lemma)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &store.Lemma{SiteID: siteID, Lemma: lemma}
	}
	c.lru.Add(key, row)
	return row, nil
}

// Clear drops all entries, called between indexing runs.
func (c *LemmaCache) Clear() {
	c.lru.Purge()
}

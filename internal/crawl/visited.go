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

// Package crawl walks one site's internal link graph with a fixed worker
// pool, claiming each URL exactly once.
package crawl

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Visited is the per-site claim set. Claim is the single serialization point
// for enqueue decisions: at most one worker wins any URL. Keys are xxhash
// digests of the canonical URL, keeping the set compact on large sites.
type Visited struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewVisited creates an empty claim set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[uint64]struct{})}
}

// Claim records the URL and reports whether this call was the first to do
// so.
func (v *Visited) Claim(url string) bool {
	key := xxhash.Sum64String(url)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// Len returns the number of claimed URLs.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

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
	"sync"
	"time"
)

// Entry is one recorded indexing failure.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Sink is an append-only concurrent error log. Page-level failures land here
// instead of aborting the run; the coordinator clears it at the start of
// each run.
type Sink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Record appends one failure.
func (s *Sink) Record(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Time: time.Now(), Kind: kind, Message: message})
}

// Entries returns a copy of the recorded failures in append order.
func (s *Sink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear drops all recorded failures.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

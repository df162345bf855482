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

import "sync"

// Pool runs tasks on a fixed number of workers. Tasks may submit further
// tasks; when the queue is full the submitter runs the task inline rather
// than blocking, so workers can never deadlock on their own fan-out.
type Pool struct {
	tasks   chan func()
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts n workers. n below 1 is raised to 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{tasks: make(chan func(), 1024)}
	p.workers.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.workers.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit schedules fn and reports whether it was accepted. A closed pool
// rejects all submissions.
func (p *Pool) Submit(fn func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.pending.Add(1)
	p.mu.Unlock()

	wrapped := func() {
		defer p.pending.Done()
		fn()
	}
	select {
	case p.tasks <- wrapped:
	default:
		// Queue full: run on the submitter. Workers submitting children
		// make progress instead of blocking each other.
		wrapped()
	}
	return true
}

// Drain blocks until every accepted task, including tasks submitted by
// running tasks, has finished.
func (p *Pool) Drain() {
	p.pending.Wait()
}

// Close drains outstanding work and stops the workers. Submissions after
// Close are rejected.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.tasks)
	p.workers.Wait()
}

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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisitedClaimOnce(t *testing.T) {
	v := NewVisited()
	assert.True(t, v.Claim("https://example.test/a"))
	assert.False(t, v.Claim("https://example.test/a"))
	assert.True(t, v.Claim("https://example.test/b"))
	assert.Equal(t, 2, v.Len())
}

func TestVisitedClaimConcurrent(t *testing.T) {
	v := NewVisited()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Claim("https://example.test/contested") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		assert.True(t, p.Submit(func() { ran.Add(1) }))
	}
	p.Drain()
	assert.EqualValues(t, 50, ran.Load())
}

func TestPoolDrainWaitsForNestedSubmissions(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var ran atomic.Int32
	var fanOut func(depth int)
	fanOut = func(depth int) {
		ran.Add(1)
		if depth == 0 {
			return
		}
		for i := 0; i < 3; i++ {
			p.Submit(func() { fanOut(depth - 1) })
		}
	}
	p.Submit(func() { fanOut(3) })
	p.Drain()
	// 1 + 3 + 9 + 27 tasks across the fan-out tree.
	assert.EqualValues(t, 40, ran.Load())
}

func TestPoolRejectsAfterClose(t *testing.T) {
	p := NewPool(1)
	p.Close()
	assert.False(t, p.Submit(func() {}))
}

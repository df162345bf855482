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

package lemma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer()
	require.NoError(t, err)
	return a
}

func TestCollectLemmasEnglish(t *testing.T) {
	a := newTestAnalyzer(t)

	counts := a.CollectLemmas("Apples and an apple on the table")
	// "and", "an", "on", "the" are functional words; apples/apple share a stem.
	assert.Equal(t, 2, counts["appl"])
	assert.Equal(t, 1, counts["tabl"])
	assert.NotContains(t, counts, "and")
	assert.NotContains(t, counts, "the")
	assert.NotContains(t, counts, "on")
}

func TestCollectLemmasRussian(t *testing.T) {
	a := newTestAnalyzer(t)

	counts := a.CollectLemmas("Леса и леса, но не поле")
	assert.Equal(t, 2, counts["лес"])
	assert.Equal(t, 1, counts["пол"])
	assert.NotContains(t, counts, "и")
	assert.NotContains(t, counts, "но")
	assert.NotContains(t, counts, "не")
}

func TestCollectLemmasDropsMixedScriptTokens(t *testing.T) {
	a := newTestAnalyzer(t)

	counts := a.CollectLemmas("apple яблоко appleяблоко")
	assert.Contains(t, counts, "appl")
	assert.Contains(t, counts, "яблок")
	assert.Len(t, counts, 2)
}

func TestCollectLemmasStripsMarkup(t *testing.T) {
	a := newTestAnalyzer(t)

	html := `<html><head><style>body { color: red }</style></head>
<body><p>Visible words</p><script>var hidden = "script";</script>
<noscript>fallback</noscript></body></html>`
	counts := a.CollectLemmas(html)
	assert.Contains(t, counts, "visibl")
	assert.Contains(t, counts, "word")
	assert.NotContains(t, counts, "hidden")
	assert.NotContains(t, counts, "script")
	assert.NotContains(t, counts, "fallback")
	assert.NotContains(t, counts, "color")
}

func TestLemmaSet(t *testing.T) {
	a := newTestAnalyzer(t)

	set := a.LemmaSet("apple apples APPLE")
	assert.Len(t, set, 1)
	assert.Contains(t, set, "appl")
}

func TestVisibleText(t *testing.T) {
	got := VisibleText("<p>one</p>\n<p>two   three</p>")
	assert.Equal(t, "one two three", got)
}

func TestVisibleTextPlain(t *testing.T) {
	assert.Equal(t, "plain text", VisibleText("  plain \t text \n"))
}

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

// Package lemma turns page content into lemma frequency maps. Tokens are
// routed to a Russian or English stemmer by script; functional words
// (prepositions, conjunctions, interjections, particles) are dropped before
// stemming.
package lemma

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// ErrAnalyzerInit reports a failed stemmer initialization.
var ErrAnalyzerInit = errors.New("analyzer initialization failed")

const (
	langEnglish = "english"
	langRussian = "russian"
)

// russianStopClasses are Russian functional words: prepositions,
// conjunctions, particles and interjections.
var russianStopClasses = wordSet(
	// prepositions
	"в", "во", "на", "за", "к", "ко", "с", "со", "о", "об", "обо", "от", "ото",
	"по", "под", "подо", "над", "надо", "при", "про", "без", "безо", "до",
	"из", "изо", "у", "для", "через", "между", "перед", "передо", "около",
	"вокруг", "среди", "против", "сквозь", "вдоль", "кроме", "ради", "вместо",
	// conjunctions
	"и", "а", "но", "да", "или", "либо", "что", "чтобы", "если", "когда",
	"пока", "хотя", "потому", "поэтому", "также", "тоже", "зато", "однако",
	"будто", "словно", "ибо", "как", "чем", "нежели",
	// particles
	"не", "ни", "же", "ж", "бы", "б", "ли", "ль", "уж", "ведь", "вот", "вон",
	"лишь", "только", "даже", "именно", "пусть", "пускай",
	// interjections
	"ах", "ох", "эх", "ух", "ой", "ай", "эй", "увы", "ура", "браво",
)

// englishStopClasses are English functional words: prepositions,
// conjunctions, articles and interjections.
var englishStopClasses = wordSet(
	// prepositions
	"in", "on", "at", "by", "for", "with", "about", "against", "between",
	"into", "through", "during", "before", "after", "above", "below", "to",
	"from", "up", "down", "of", "off", "over", "under", "near", "without",
	"within", "along", "across", "behind", "beyond", "around", "among",
	"upon", "toward", "towards", "via", "per",
	// conjunctions
	"and", "but", "or", "nor", "so", "yet", "if", "because", "although",
	"though", "while", "whereas", "unless", "until", "since", "than",
	"whether", "as",
	// articles
	"a", "an", "the",
	// interjections
	"oh", "ah", "wow", "ouch", "hey", "alas", "hurray", "oops", "hmm",
)

// Analyzer converts text into lemma multisets. It is pure and safe for
// concurrent use after construction.
type Analyzer struct{}

// NewAnalyzer validates both stemmer languages once so an unsupported
// snowball language surfaces at startup instead of per page mid-crawl.
func NewAnalyzer() (*Analyzer, error) {
	for _, lang := range []string{langEnglish, langRussian} {
		if _, err := snowball.Stem("probe", lang, false); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAnalyzerInit, lang, err)
		}
	}
	return &Analyzer{}, nil
}

// CollectLemmas extracts the visible text of content (HTML or plain) and
// returns lemma -> occurrence count for one page.
func (a *Analyzer) CollectLemmas(content string) map[string]int {
	counts := make(map[string]int)
	for _, token := range tokenize(VisibleText(content)) {
		lemma, ok := a.lemmatize(token)
		if !ok {
			continue
		}
		counts[lemma]++
	}
	return counts
}

// LemmaSet returns the distinct lemmas of a text, used by the search side
// to lemmatize queries.
func (a *Analyzer) LemmaSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range tokenize(VisibleText(text)) {
		if lemma, ok := a.lemmatize(token); ok {
			set[lemma] = struct{}{}
		}
	}
	return set
}

// lemmatize maps one lowercased token to its lemma. Tokens of mixed or
// non-target scripts and functional words are dropped.
func (a *Analyzer) lemmatize(token string) (string, bool) {
	lang, ok := detectLanguage(token)
	if !ok {
		return "", false
	}
	switch lang {
	case langRussian:
		if _, stop := russianStopClasses[token]; stop {
			return "", false
		}
	case langEnglish:
		if _, stop := englishStopClasses[token]; stop {
			return "", false
		}
	}
	stemmed, err := snowball.Stem(token, lang, false)
	if err != nil || stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// tokenize lowercases text and splits it on non-letter runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// detectLanguage routes a token by script: Cyrillic-only runs are Russian,
// Latin-only runs are English. Anything mixed is dropped.
func detectLanguage(token string) (string, bool) {
	cyrillic, latin := false, false
	for _, r := range token {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic = true
		case unicode.Is(unicode.Latin, r):
			latin = true
		default:
			return "", false
		}
	}
	switch {
	case cyrillic && !latin:
		return langRussian, true
	case latin && !cyrillic:
		return langEnglish, true
	default:
		return "", false
	}
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

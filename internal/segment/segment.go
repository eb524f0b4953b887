// Package segment splits chapter text into bounded translation units and
// merges translated units back into one document.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
)

// DefaultMaxWords is the default unit bound.
const DefaultMaxWords = 3000

// A run of sentence-final punctuation plus trailing whitespace ends a sentence.
var sentenceEnd = regexp.MustCompile(`[。！？.!?]+[\s\x{3000}]*`)

// Unit is one translation unit produced by Split. Index starts at 1.
type Unit struct {
	Index int
	Text  string
	Words int
}

type Segmenter struct {
	maxWords int
}

// New returns a segmenter bounded at maxWords; non-positive means DefaultMaxWords.
func New(maxWords int) *Segmenter {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Segmenter{maxWords: maxWords}
}

func (s *Segmenter) MaxWords() int {
	return s.maxWords
}

// Split packs the sentences of text into units. A sentence larger than the
// bound becomes a unit of its own and is never cut.
func (s *Segmenter) Split(text string) []Unit {
	sentences := SplitSentences(text)
	groups := Pack(sentences, WordCount, s.maxWords)

	units := make([]Unit, 0, len(groups))
	for i, group := range groups {
		words := 0
		for _, sentence := range group {
			words += WordCount(sentence)
		}
		units = append(units, Unit{
			Index: i + 1,
			Text:  strings.Join(group, "\n"),
			Words: words,
		})
	}
	return units
}

// WordCount counts each CJK ideograph once, plus every maximal run of word
// characters in any script. The two counts overlap on purpose.
func WordCount(text string) int {
	ideographs := 0
	tokens := 0
	inToken := false
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			ideographs++
		}
		if isWordRune(r) {
			if !inToken {
				tokens++
				inToken = true
			}
			continue
		}
		inToken = false
	}
	return ideographs + tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

// SplitSentences cuts text after every run of terminators, keeping the
// punctuation on the preceding sentence. Sentences are trimmed and empty ones
// dropped; text without any terminator is a single sentence.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sentence := strings.TrimSpace(text[start:loc[1]]); sentence != "" {
			out = append(out, sentence)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Pack groups items greedily in order. The current group is closed when
// adding the next item would push its weight past bound and the group is not
// empty, so an item heavier than bound always ends up alone.
func Pack[T any](items []T, weight func(T) int, bound int) [][]T {
	var groups [][]T
	var current []T
	currentWeight := 0
	for _, item := range items {
		w := weight(item)
		if len(current) > 0 && currentWeight+w > bound {
			groups = append(groups, current)
			current = nil
			currentWeight = 0
		}
		current = append(current, item)
		currentWeight += w
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// Merge joins the non-empty translations of segments in index order with a
// blank line. Segments must already be sorted by index.
func Merge(segments []corpus.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Translation); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

type Progress struct {
	Total      int     `json:"total"`
	Translated int     `json:"translated"`
	Remaining  int     `json:"remaining"`
	Percent    float64 `json:"percent"`
}

func ProgressOf(segments []corpus.Segment) Progress {
	p := Progress{Total: len(segments)}
	for _, seg := range segments {
		if seg.Translated() {
			p.Translated++
		}
	}
	p.Remaining = p.Total - p.Translated
	if p.Total > 0 {
		p.Percent = float64(p.Translated) / float64(p.Total) * 100
	}
	return p
}

// NextUntranslated returns the lowest-index segment without a translation.
func NextUntranslated(segments []corpus.Segment) (corpus.Segment, bool) {
	for _, seg := range segments {
		if !seg.Translated() {
			return seg, true
		}
	}
	return corpus.Segment{}, false
}

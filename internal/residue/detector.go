// Package residue finds foreign-script characters left behind in a
// translation that should be entirely in a Latin-script language.
package residue

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultWarnThreshold is the distinct-character count at which ShouldWarn fires.
const DefaultWarnThreshold = 3

// maxSamples caps the characters listed per script in a warning message.
const maxSamples = 10

type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Script is a named set of code point ranges.
type Script struct {
	Name  string
	Label string
	Table *unicode.RangeTable
}

var (
	Chinese = Script{Name: "chinese", Label: "Chinese", Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1},
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1},
	}}}
	Korean = Script{Name: "korean", Label: "Korean", Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11ff, Stride: 1},
		{Lo: 0x3130, Hi: 0x318f, Stride: 1},
		{Lo: 0xac00, Hi: 0xd7af, Stride: 1},
	}}}
	Japanese = Script{Name: "japanese", Label: "Japanese", Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x309f, Stride: 1},
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1},
	}}}
	Thai = Script{Name: "thai", Label: "Thai", Table: &unicode.RangeTable{R16: []unicode.Range16{
		{Lo: 0x0e00, Hi: 0x0e7f, Stride: 1},
	}}}

	DefaultScripts = []Script{Chinese, Korean, Japanese, Thai}
)

// ScriptResidue holds the distinct characters of one script, in order of
// first appearance.
type ScriptResidue struct {
	Script string   `json:"script"`
	Count  int      `json:"count"`
	Chars  []string `json:"chars"`
}

type Result struct {
	HasForeign bool            `json:"has_foreign"`
	Scripts    []ScriptResidue `json:"scripts"`
	Total      int             `json:"total"`
	Length     int             `json:"length"`
	Severity   Severity        `json:"severity"`
	Message    string          `json:"message"`
}

// Count returns the distinct count for the named script.
func (r Result) Count(script string) int {
	for _, s := range r.Scripts {
		if s.Script == script {
			return s.Count
		}
	}
	return 0
}

type Detector struct {
	scripts []Script
}

// NewDetector builds a detector over scripts, DefaultScripts when none given.
func NewDetector(scripts ...Script) *Detector {
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	return &Detector{scripts: scripts}
}

var defaultDetector = NewDetector()

func Detect(text string) Result {
	return defaultDetector.Detect(text)
}

func ShouldWarn(text string, threshold int) bool {
	return defaultDetector.ShouldWarn(text, threshold)
}

func Highlight(text string) string {
	return defaultDetector.Highlight(text, HTMLMarker)
}

func (d *Detector) Detect(text string) Result {
	result := Result{
		Scripts:  make([]ScriptResidue, len(d.scripts)),
		Length:   utf8.RuneCountInString(text),
		Severity: SeverityNone,
	}
	seen := make([]map[rune]struct{}, len(d.scripts))
	for i, s := range d.scripts {
		result.Scripts[i] = ScriptResidue{Script: s.Name, Chars: []string{}}
		seen[i] = make(map[rune]struct{})
	}

	for _, r := range text {
		i := d.scriptOf(r)
		if i < 0 {
			continue
		}
		if _, ok := seen[i][r]; ok {
			continue
		}
		seen[i][r] = struct{}{}
		result.Scripts[i].Chars = append(result.Scripts[i].Chars, string(r))
		result.Scripts[i].Count++
		result.Total++
	}

	result.HasForeign = result.Total > 0
	result.Severity = Classify(result.Total, result.Length)
	result.Message = d.message(result)
	return result
}

func (d *Detector) ShouldWarn(text string, threshold int) bool {
	return d.Detect(text).Total >= threshold
}

// Classify buckets a distinct foreign count against the text length in runes.
// The count-based fallback to medium at more than five characters is kept
// even though it ignores the ratio.
func Classify(foreign, length int) Severity {
	if foreign == 0 {
		return SeverityNone
	}
	if length == 0 {
		return SeverityHigh
	}
	ratio := float64(foreign) / float64(length)
	switch {
	case ratio > 0.10:
		return SeverityHigh
	case ratio > 0.05:
		return SeverityMedium
	case foreign > 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (d *Detector) message(result Result) string {
	lines := make([]string, 0, len(d.scripts))
	for i, s := range result.Scripts {
		if s.Count == 0 {
			continue
		}
		sample := s.Chars
		if len(sample) > maxSamples {
			sample = sample[:maxSamples]
		}
		lines = append(lines, fmt.Sprintf("%d %s: %s", s.Count, d.scripts[i].Label, strings.Join(sample, " ")))
	}
	return strings.Join(lines, "\n")
}

// Marker wraps one run of same-script characters.
type Marker func(script, run string) string

// HTMLMarker wraps runs in <mark> with a per-script class.
func HTMLMarker(script, run string) string {
	return fmt.Sprintf(`<mark class="residue residue-%s">%s</mark>`, script, run)
}

// Highlight wraps each maximal run of characters from one script using mark.
// All other text is left untouched.
func (d *Detector) Highlight(text string, mark Marker) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))

	current := -1
	var run strings.Builder
	flush := func() {
		if current >= 0 && run.Len() > 0 {
			b.WriteString(mark(d.scripts[current].Name, run.String()))
		}
		run.Reset()
	}

	for _, r := range text {
		i := d.scriptOf(r)
		if i != current {
			flush()
			current = i
		}
		if i < 0 {
			b.WriteRune(r)
			continue
		}
		run.WriteRune(r)
	}
	flush()
	return b.String()
}

func (d *Detector) scriptOf(r rune) int {
	for i, s := range d.scripts {
		if unicode.Is(s.Table, r) {
			return i
		}
	}
	return -1
}

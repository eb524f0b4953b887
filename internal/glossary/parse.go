package glossary

import (
	"strings"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
)

// Pair is one "source = target" line.
type Pair struct {
	Source string
	Target string
}

// ParsePairs reads newline-delimited "source = target" lines. Lines without
// exactly one separator or with an empty side are skipped and counted.
// Blank lines are neither kept nor counted.
func ParsePairs(text string) ([]Pair, int) {
	var pairs []Pair
	skipped := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pair, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, skipped
}

func parseLine(line string) (Pair, bool) {
	if strings.Count(line, "=") != 1 {
		return Pair{}, false
	}
	source, target, _ := strings.Cut(line, "=")
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source == "" || target == "" {
		return Pair{}, false
	}
	return Pair{Source: source, Target: target}, true
}

// Listing renders terms as "source = target" lines, the form extraction
// replies use, so the model can be told what to skip.
func Listing(terms []corpus.GlossaryTerm) string {
	var b strings.Builder
	for _, t := range terms {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.SourceTerm)
		b.WriteString(" = ")
		b.WriteString(t.TargetTerm)
	}
	return b.String()
}

// Context renders terms as "source → target" lines for translation prompts.
func Context(terms []corpus.GlossaryTerm) string {
	lines := make([]string, 0, len(terms))
	for _, t := range terms {
		lines = append(lines, t.SourceTerm+" → "+t.TargetTerm)
	}
	return strings.Join(lines, "\n")
}

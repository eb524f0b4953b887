package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Older databases kept the glossary checkpoint as "checkpoint:<n>" inside the
// corpus description. These helpers only exist to migrate that marker into
// the checkpoint column.

var checkpointMarker = regexp.MustCompile(`checkpoint:(\d+)`)

func HasCheckpointMarker(text string) bool {
	return checkpointMarker.MatchString(text)
}

// ParseCheckpointMarker returns the first marker value in text, or 0.
func ParseCheckpointMarker(text string) int {
	m := checkpointMarker.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// WithCheckpointMarker replaces the existing marker in place, or appends one
// on a new line. The result always holds exactly one marker.
func WithCheckpointMarker(text string, checkpoint int) string {
	marker := fmt.Sprintf("checkpoint:%d", checkpoint)
	if loc := checkpointMarker.FindStringIndex(text); loc != nil {
		rest := checkpointMarker.ReplaceAllString(text[loc[1]:], "")
		return text[:loc[0]] + marker + rest
	}
	if strings.TrimSpace(text) == "" {
		return marker
	}
	return text + "\n" + marker
}

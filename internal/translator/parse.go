package translator

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	titleTag   = "###TITLE###"
	contentTag = "###CONTENT###"
)

var scorePattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)

// ParseTranslation splits a tagged reply into title and content. A reply
// without both tags is taken as content only.
func ParseTranslation(text string) (TranslateResult, bool) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, titleTag) || !strings.Contains(text, contentTag) {
		return TranslateResult{Content: text}, false
	}
	head, body, _ := strings.Cut(text, contentTag)
	return TranslateResult{
		Title:   strings.TrimSpace(strings.ReplaceAll(head, titleTag, "")),
		Content: strings.TrimSpace(strings.ReplaceAll(body, titleTag, "")),
	}, true
}

// ParseReview takes the first percentage in text as the score, clamped to
// [0, 100]. The whole reply is the report.
func ParseReview(text string) ReviewResult {
	text = strings.TrimSpace(text)
	result := ReviewResult{Report: text}
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return result
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return result
	}
	result.Score = min(max(score, 0), 100)
	result.Scored = true
	return result
}

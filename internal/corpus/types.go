// Package corpus defines the records of a serialized work: corpora, volumes,
// chapters, segments and glossary terms.
package corpus

import (
	"strings"
	"time"
)

type ChapterStatus string

const (
	StatusPending    ChapterStatus = "pending"
	StatusPrepared   ChapterStatus = "prepared"
	StatusTranslated ChapterStatus = "translated"
)

type Corpus struct {
	ID             int64  `json:"id" yaml:"-"`
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description,omitempty"`
	SourceLanguage string `json:"source_language" yaml:"source_language,omitempty"`
	Checkpoint     int    `json:"checkpoint" yaml:"-"`
}

type Volume struct {
	ID       int64  `json:"id"`
	CorpusID int64  `json:"corpus_id"`
	Index    int    `json:"index"`
	Title    string `json:"title"`
}

type Chapter struct {
	ID               int64         `json:"id"`
	VolumeID         int64         `json:"volume_id"`
	Index            int           `json:"index"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	TitleTranslation string        `json:"title_translation"`
	Translation      string        `json:"translation"`
	Status           ChapterStatus `json:"status"`
	Score            float64       `json:"score"`
	ReviewReport     string        `json:"review_report"`
	Warning          string        `json:"warning"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Translated reports whether the chapter holds a non-empty translation.
func (c Chapter) Translated() bool {
	return strings.TrimSpace(c.Translation) != ""
}

// DisplayTitle prefers the translated title.
func (c Chapter) DisplayTitle() string {
	if t := strings.TrimSpace(c.TitleTranslation); t != "" {
		return t
	}
	return c.Title
}

// ChapterRef is a chapter together with its volume index and corpus, which
// is what corpus-wide ordering needs.
type ChapterRef struct {
	Chapter
	VolumeIndex int   `json:"volume_index"`
	CorpusID    int64 `json:"corpus_id"`
}

type Segment struct {
	ID           int64   `json:"id"`
	ChapterID    int64   `json:"chapter_id"`
	Index        int     `json:"index"`
	Source       string  `json:"source"`
	Translation  string  `json:"translation"`
	Score        float64 `json:"score"`
	ReviewReport string  `json:"review_report"`
	Warning      string  `json:"warning"`
}

func (s Segment) Translated() bool {
	return strings.TrimSpace(s.Translation) != ""
}

type GlossaryTerm struct {
	CorpusID   int64  `json:"corpus_id"`
	SourceTerm string `json:"source_term"`
	TargetTerm string `json:"target_term"`
	Note       string `json:"note,omitempty"`
}

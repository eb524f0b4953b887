package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the job will not change any more.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

type Kind string

const (
	KindTranslateChapter Kind = "translate-chapter"
	KindReviewChapter    Kind = "review-chapter"
	KindGenerateGlossary Kind = "generate-glossary"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTranslateChapter, KindReviewChapter, KindGenerateGlossary:
		return true
	}
	return false
}

type EnqueueRequest struct {
	Kind      Kind
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	CorpusID  int64 `json:"corpus_id,omitempty"`
	ChapterID int64 `json:"chapter_id,omitempty"`
	Override  bool  `json:"override,omitempty"`
	FromStart bool  `json:"from_start,omitempty"`
}

// DedupeKey is the default key for a job: one live job per chapter and
// kind, or per corpus for glossary runs.
func DedupeKey(kind Kind, p JobPayload) string {
	if kind == KindGenerateGlossary {
		return fmt.Sprintf("%s|corpus-%d", kind, p.CorpusID)
	}
	return fmt.Sprintf("%s|chapter-%d", kind, p.ChapterID)
}

type Job struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Result    string     `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SkipError ends a job as skipped instead of failed, e.g. a chapter that is
// already translated.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// Package service coordinates chapter translation: it segments chapters,
// assembles glossary and preceding-chapter context, calls the generation
// service through the credential pool and stores the results.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/residue"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

const (
	DefaultContextChapters = 2
	DefaultExcerptChars    = 1500
	DefaultReviewWorkers   = 2
	// LowScore is the review score under which a chapter counts as weak.
	LowScore = 80.0
)

// Store is the part of the corpus store the orchestrator reads and writes.
type Store interface {
	GetCorpus(ctx context.Context, id int64) (corpus.Corpus, bool, error)
	SetSourceLanguage(ctx context.Context, corpusID int64, lang string) error
	GetVolume(ctx context.Context, id int64) (corpus.Volume, bool, error)
	GetChapter(ctx context.Context, id int64) (corpus.ChapterRef, bool, error)
	ListCorpusChapters(ctx context.Context, corpusID int64) ([]corpus.ChapterRef, error)
	SaveChapter(ctx context.Context, ch corpus.Chapter) error
	SaveChapterReview(ctx context.Context, chapterID int64, score float64, report string) error
	ReplaceSegments(ctx context.Context, chapterID int64, sources []string) ([]corpus.Segment, error)
	GetSegment(ctx context.Context, id int64) (corpus.Segment, bool, error)
	ListSegments(ctx context.Context, chapterID int64) ([]corpus.Segment, error)
	SaveSegment(ctx context.Context, seg corpus.Segment) error
	SaveSegmentReview(ctx context.Context, segmentID int64, score float64, report string) error
	ListGlossary(ctx context.Context, corpusID int64) ([]corpus.GlossaryTerm, error)
}

// Generator is the translate, review and fix side of the generation service.
type Generator interface {
	Translate(ctx context.Context, cred credential.Credential, req translator.TranslateRequest) (translator.TranslateResult, error)
	Review(ctx context.Context, cred credential.Credential, source, translated, sourceLanguage string) (translator.ReviewResult, error)
	Fix(ctx context.Context, cred credential.Credential, req translator.FixRequest) (translator.TranslateResult, error)
}

// Credentials hands out the key for each generation call.
type Credentials interface {
	Acquire(ctx context.Context) (credential.Credential, error)
	ForceRotate(ctx context.Context) (credential.Credential, error)
}

type Orchestrator struct {
	store           Store
	gen             Generator
	creds           Credentials
	segmenter       *segment.Segmenter
	detector        *residue.Detector
	contextChapters int
	excerptChars    int
	reviewWorkers   int
	locks           *chapterLocks
}

type Option func(*Orchestrator)

// WithMaxWords sets the unit bound used when segmenting chapters.
func WithMaxWords(n int) Option {
	return func(o *Orchestrator) {
		o.segmenter = segment.New(n)
	}
}

func WithContextChapters(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.contextChapters = n
		}
	}
}

func WithExcerptChars(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.excerptChars = n
		}
	}
}

func WithReviewWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.reviewWorkers = n
		}
	}
}

func WithDetector(d *residue.Detector) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.detector = d
		}
	}
}

func NewOrchestrator(store Store, gen Generator, creds Credentials, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:           store,
		gen:             gen,
		creds:           creds,
		segmenter:       segment.New(segment.DefaultMaxWords),
		detector:        residue.NewDetector(),
		contextChapters: DefaultContextChapters,
		excerptChars:    DefaultExcerptChars,
		reviewWorkers:   DefaultReviewWorkers,
		locks:           newChapterLocks(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// call runs fn with a pooled credential. A rate-limited failure rotates the
// pool so the caller's next attempt uses another key; nothing is retried here.
func (o *Orchestrator) call(ctx context.Context, op string, fn func(credential.Credential) error) error {
	cred, err := o.creds.Acquire(ctx)
	if err != nil {
		return err
	}
	err = fn(cred)
	if err == nil {
		return nil
	}
	if errs.IsRateLimited(err) {
		log.Warn("%s hit the rate limit on key %s, rotating", op, cred.Masked())
		if _, rotateErr := o.creds.ForceRotate(ctx); rotateErr != nil {
			log.Error("Failed to rotate credential after rate limit: %v", rotateErr)
		}
	}
	return err
}

func (o *Orchestrator) corpus(ctx context.Context, id int64) (corpus.Corpus, error) {
	c, found, err := o.store.GetCorpus(ctx, id)
	if err != nil {
		return corpus.Corpus{}, errs.WrapError(err, errs.ErrStore, "failed to load corpus")
	}
	if !found {
		return corpus.Corpus{}, errs.Errorf(errs.ErrNotFound, "corpus %d not found", id)
	}
	return c, nil
}

func (o *Orchestrator) chapter(ctx context.Context, id int64) (corpus.ChapterRef, error) {
	ch, found, err := o.store.GetChapter(ctx, id)
	if err != nil {
		return corpus.ChapterRef{}, errs.WrapError(err, errs.ErrStore, "failed to load chapter")
	}
	if !found {
		return corpus.ChapterRef{}, errs.Errorf(errs.ErrNotFound, "chapter %d not found", id)
	}
	return ch, nil
}

func (o *Orchestrator) segment(ctx context.Context, id int64) (corpus.Segment, error) {
	seg, found, err := o.store.GetSegment(ctx, id)
	if err != nil {
		return corpus.Segment{}, errs.WrapError(err, errs.ErrStore, "failed to load segment")
	}
	if !found {
		return corpus.Segment{}, errs.Errorf(errs.ErrNotFound, "segment %d not found", id)
	}
	return seg, nil
}

func (o *Orchestrator) segments(ctx context.Context, chapterID int64) ([]corpus.Segment, error) {
	segs, err := o.store.ListSegments(ctx, chapterID)
	if err != nil {
		return nil, errs.WrapError(err, errs.ErrStore, "failed to list segments")
	}
	return segs, nil
}

// sourceLanguage returns the corpus language, detecting and storing it from
// sample when unset. An unreliable guess is used for this call only.
func (o *Orchestrator) sourceLanguage(ctx context.Context, c corpus.Corpus, sample string) string {
	if c.SourceLanguage != "" {
		return c.SourceLanguage
	}
	info := whatlanggo.Detect(sample)
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	if !info.IsReliable() {
		return code
	}
	if err := o.store.SetSourceLanguage(ctx, c.ID, code); err != nil {
		log.Warn("Failed to store detected language %s of corpus %d: %v", code, c.ID, err)
	} else {
		log.Info("Detected source language %s for corpus %q", code, c.Title)
	}
	return code
}

// Progress reports how many segments of a chapter are translated.
func (o *Orchestrator) Progress(ctx context.Context, chapterID int64) (segment.Progress, error) {
	if _, err := o.chapter(ctx, chapterID); err != nil {
		return segment.Progress{}, err
	}
	segs, err := o.segments(ctx, chapterID)
	if err != nil {
		return segment.Progress{}, err
	}
	return segment.ProgressOf(segs), nil
}

// PrepareChapter segments a chapter without translating it and returns the
// number of units. Existing units are replaced.
func (o *Orchestrator) PrepareChapter(ctx context.Context, chapterID int64) (int, error) {
	unlock, err := o.locks.Lock(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	ch, err := o.chapter(ctx, chapterID)
	if err != nil {
		return 0, err
	}
	segs, err := o.resegment(ctx, ch.Chapter)
	if err != nil {
		return 0, err
	}
	if ch.Status != corpus.StatusTranslated {
		ch.Status = corpus.StatusPrepared
		if err := o.store.SaveChapter(ctx, ch.Chapter); err != nil {
			return 0, errs.WrapError(err, errs.ErrStore, "failed to save chapter")
		}
	}
	return len(segs), nil
}

// resegment replaces the units of ch. The caller holds the chapter lock.
func (o *Orchestrator) resegment(ctx context.Context, ch corpus.Chapter) ([]corpus.Segment, error) {
	units := o.segmenter.Split(ch.Body)
	if len(units) == 0 {
		return nil, errs.Errorf(errs.ErrValidation, "chapter %d has no source text", ch.ID)
	}
	sources := make([]string, len(units))
	for i, u := range units {
		sources[i] = u.Text
	}
	segs, err := o.store.ReplaceSegments(ctx, ch.ID, sources)
	if err != nil {
		return nil, errs.WrapError(err, errs.ErrStore, "failed to replace segments")
	}
	log.Info("Chapter %d split into %d units of at most %d words", ch.ID, len(segs), o.segmenter.MaxWords())
	return segs, nil
}

// finalize merges the unit translations into the chapter and aggregates
// their residue warnings.
func (o *Orchestrator) finalize(ctx context.Context, ch corpus.Chapter, segs []corpus.Segment) (corpus.Chapter, error) {
	ch.Translation = segment.Merge(segs)
	ch.Status = corpus.StatusTranslated
	ch.Warning = aggregateWarnings(segs)
	if err := o.store.SaveChapter(ctx, ch); err != nil {
		return ch, errs.WrapError(err, errs.ErrStore, "failed to save chapter")
	}
	log.Info("Chapter %d merged from %d units", ch.ID, len(segs))
	return ch, nil
}

func aggregateWarnings(segs []corpus.Segment) string {
	var lines []string
	for _, seg := range segs {
		if w := strings.TrimSpace(seg.Warning); w != "" {
			lines = append(lines, fmt.Sprintf("Unit %d: %s", seg.Index, strings.ReplaceAll(w, "\n", "; ")))
		}
	}
	return strings.Join(lines, "\n")
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

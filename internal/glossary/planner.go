// Package glossary builds and maintains the per-corpus term glossary: it walks
// a corpus in bounded batches, asks the generation service for new terms and
// keeps a resumable checkpoint.
package glossary

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

const (
	DefaultBatchWords = 20000
	DefaultCharCap    = 75000
)

// Store is the part of the corpus store the planner reads and writes.
type Store interface {
	GetCorpus(ctx context.Context, id int64) (corpus.Corpus, bool, error)
	// ListCorpusChapters returns every chapter in (volume index, chapter
	// index) order.
	ListCorpusChapters(ctx context.Context, corpusID int64) ([]corpus.ChapterRef, error)
	ListGlossary(ctx context.Context, corpusID int64) ([]corpus.GlossaryTerm, error)
	// InsertGlossaryTerm keeps an existing term and reports whether the
	// term was new.
	InsertGlossaryTerm(ctx context.Context, term corpus.GlossaryTerm) (bool, error)
	UpsertGlossaryTerm(ctx context.Context, term corpus.GlossaryTerm) error
	DeleteGlossaryTerm(ctx context.Context, corpusID int64, sourceTerm string) (bool, error)
	SetCheckpoint(ctx context.Context, corpusID int64, checkpoint int) error
}

// Extractor is the glossary extraction call of the generation service.
type Extractor interface {
	ExtractGlossary(ctx context.Context, cred credential.Credential, batchText, existing, sourceLanguage string) (string, error)
}

// Credentials hands out the key for each extraction call.
type Credentials interface {
	Acquire(ctx context.Context) (credential.Credential, error)
	ForceRotate(ctx context.Context) (credential.Credential, error)
}

// Summary reports one generation run.
type Summary struct {
	CorpusID          int64 `json:"corpus_id"`
	Batches           int   `json:"batches"`
	ChaptersProcessed int   `json:"chapters_processed"`
	NewTerms          int   `json:"new_terms"`
	TotalTerms        int   `json:"total_terms"`
	Checkpoint        int   `json:"checkpoint"`
	FailedBatches     int   `json:"failed_batches"`
}

type Planner struct {
	store      Store
	extractor  Extractor
	creds      Credentials
	batchWords int
	charCap    int
	group      singleflight.Group

	mu   sync.Mutex
	runs map[int64]chan struct{}
}

type Option func(*Planner)

func WithBatchWords(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.batchWords = n
		}
	}
}

func WithCharCap(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.charCap = n
		}
	}
}

func NewPlanner(store Store, extractor Extractor, creds Credentials, opts ...Option) *Planner {
	p := &Planner{
		store:      store,
		extractor:  extractor,
		creds:      creds,
		batchWords: DefaultBatchWords,
		charCap:    DefaultCharCap,
		runs:       make(map[int64]chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pending is a chapter still to be sent, with its corpus-wide ordinal.
type pending struct {
	ref     corpus.ChapterRef
	ordinal int
	words   int
}

// Generate extracts glossary terms from every chapter past the checkpoint.
// Concurrent calls for the same corpus and mode share one run. A run from
// the start never joins a resumed run; it waits for it and then starts over.
func (p *Planner) Generate(ctx context.Context, corpusID int64, fromStart bool) (Summary, error) {
	mode := "resume"
	if fromStart {
		mode = "from-start"
	}
	key := strconv.FormatInt(corpusID, 10) + "/" + mode
	v, err, shared := p.group.Do(key, func() (interface{}, error) {
		unlock, err := p.lockRun(ctx, corpusID)
		if err != nil {
			return Summary{}, err
		}
		defer unlock()
		return p.generate(ctx, corpusID, fromStart)
	})
	if shared {
		log.Info("Glossary run for corpus %d (%s) joined an in-flight run", corpusID, mode)
	}
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// lockRun keeps runs of one corpus sequential, since each moves the
// checkpoint.
func (p *Planner) lockRun(ctx context.Context, corpusID int64) (func(), error) {
	p.mu.Lock()
	sem, ok := p.runs[corpusID]
	if !ok {
		sem = make(chan struct{}, 1)
		p.runs[corpusID] = sem
	}
	p.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Planner) generate(ctx context.Context, corpusID int64, fromStart bool) (Summary, error) {
	c, found, err := p.store.GetCorpus(ctx, corpusID)
	if err != nil {
		return Summary{}, errs.WrapError(err, errs.ErrStore, "failed to load corpus")
	}
	if !found {
		return Summary{}, errs.Errorf(errs.ErrNotFound, "corpus %d not found", corpusID)
	}

	checkpoint := c.Checkpoint
	if fromStart && checkpoint != 0 {
		if err := p.store.SetCheckpoint(ctx, corpusID, 0); err != nil {
			return Summary{}, errs.WrapError(err, errs.ErrStore, "failed to reset checkpoint")
		}
		checkpoint = 0
	}

	chapters, err := p.store.ListCorpusChapters(ctx, corpusID)
	if err != nil {
		return Summary{}, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
	}
	terms, err := p.store.ListGlossary(ctx, corpusID)
	if err != nil {
		return Summary{}, errs.WrapError(err, errs.ErrStore, "failed to list glossary")
	}

	todo := remaining(chapters, checkpoint)
	batches := segment.Pack(todo, func(c pending) int { return c.words }, p.batchWords)

	summary := Summary{CorpusID: corpusID, Checkpoint: checkpoint}
	log.Info("Glossary run for %q: %d chapters in %d batches from checkpoint %d (%d known terms)",
		c.Title, len(todo), len(batches), checkpoint, len(terms))

	start := time.Now()
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		added, err := p.runBatch(ctx, c, batch, terms)
		if err != nil && ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err != nil {
			log.Warn("Glossary batch %d/%d of corpus %d failed, continuing: %v", i+1, len(batches), corpusID, err)
			summary.FailedBatches++
		}

		next := batch[len(batch)-1].ordinal
		if err := p.store.SetCheckpoint(ctx, corpusID, next); err != nil {
			return summary, errs.WrapError(err, errs.ErrStore, "failed to save checkpoint")
		}
		summary.Checkpoint = next
		summary.Batches++
		summary.ChaptersProcessed += len(batch)
		summary.NewTerms += added

		if added > 0 {
			refreshed, err := p.store.ListGlossary(ctx, corpusID)
			if err != nil {
				return summary, errs.WrapError(err, errs.ErrStore, "failed to list glossary")
			}
			terms = refreshed
		}
		log.Info("Glossary batch %d/%d of corpus %d: %d chapters, %d new terms, checkpoint %d",
			i+1, len(batches), corpusID, len(batch), added, next)
	}

	summary.TotalTerms = len(terms)
	log.Info("Glossary run for corpus %d finished in %s: %d batches, %d new terms, %d total",
		corpusID, time.Since(start).Round(time.Millisecond), summary.Batches, summary.NewTerms, summary.TotalTerms)
	return summary, nil
}

// remaining lists chapters past checkpoint. The ordinal of a chapter is the
// number of chapters in earlier volumes plus its index in its own volume.
// Chapters without a body keep their place in the numbering but are not sent.
func remaining(chapters []corpus.ChapterRef, checkpoint int) []pending {
	var out []pending
	offset := 0
	inVolume := 0
	volume := 0
	for i, ch := range chapters {
		if i == 0 || ch.VolumeIndex != volume {
			offset += inVolume
			inVolume = 0
			volume = ch.VolumeIndex
		}
		inVolume++
		ordinal := offset + ch.Index
		if ordinal <= checkpoint || strings.TrimSpace(ch.Body) == "" {
			continue
		}
		out = append(out, pending{ref: ch, ordinal: ordinal, words: segment.WordCount(ch.Body)})
	}
	return out
}

// runBatch sends one batch and stores the terms it returns. An extraction
// failure yields zero terms. A rate-limited failure moves the pool on so the
// next batch uses another key.
func (p *Planner) runBatch(ctx context.Context, c corpus.Corpus, batch []pending, known []corpus.GlossaryTerm) (int, error) {
	cred, err := p.creds.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	text := p.batchText(batch)
	reply, err := p.extractor.ExtractGlossary(ctx, cred, text, Listing(known), c.SourceLanguage)
	if err != nil {
		if errs.IsRateLimited(err) {
			if _, rotateErr := p.creds.ForceRotate(ctx); rotateErr != nil {
				log.Error("Failed to rotate credential after rate limit: %v", rotateErr)
			}
		}
		return 0, err
	}

	pairs, skipped := ParsePairs(reply)
	if skipped > 0 {
		log.Debug("Skipped %d malformed glossary lines", skipped)
	}

	added := 0
	for _, pair := range pairs {
		inserted, err := p.store.InsertGlossaryTerm(ctx, corpus.GlossaryTerm{
			CorpusID:   c.ID,
			SourceTerm: pair.Source,
			TargetTerm: pair.Target,
		})
		if err != nil {
			return added, errs.WrapError(err, errs.ErrStore, "failed to insert glossary term")
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

// batchText tags each chapter body with its title and cuts the whole text at
// the character cap.
func (p *Planner) batchText(batch []pending) string {
	parts := make([]string, 0, len(batch))
	for _, item := range batch {
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", item.ref.Title, strings.TrimSpace(item.ref.Body)))
	}
	text := strings.Join(parts, "\n\n")
	if r := []rune(text); len(r) > p.charCap {
		text = string(r[:p.charCap])
	}
	return text
}

// ResetCheckpoint makes the next run start from the first chapter.
func (p *Planner) ResetCheckpoint(ctx context.Context, corpusID int64) error {
	if _, found, err := p.store.GetCorpus(ctx, corpusID); err != nil {
		return errs.WrapError(err, errs.ErrStore, "failed to load corpus")
	} else if !found {
		return errs.Errorf(errs.ErrNotFound, "corpus %d not found", corpusID)
	}
	if err := p.store.SetCheckpoint(ctx, corpusID, 0); err != nil {
		return errs.WrapError(err, errs.ErrStore, "failed to reset checkpoint")
	}
	log.Info("Glossary checkpoint of corpus %d reset", corpusID)
	return nil
}

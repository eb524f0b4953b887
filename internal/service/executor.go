package service

import (
	"context"
	"fmt"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
)

// GlossaryRunner runs one glossary generation pass over a corpus.
type GlossaryRunner interface {
	Generate(ctx context.Context, corpusID int64, fromStart bool) (glossary.Summary, error)
}

// NewExecutor dispatches queued jobs to the orchestrator and the glossary
// planner. A declined translation ends the job as skipped.
func NewExecutor(o *Orchestrator, planner GlossaryRunner) jobs.Executor {
	return func(ctx context.Context, job *jobs.Job) (string, error) {
		p := job.Payload
		switch job.Kind {
		case jobs.KindTranslateChapter:
			res, err := o.TranslateChapter(ctx, p.ChapterID, p.Override)
			if errs.IsErrorType(err, errs.ErrAlreadyTranslated) {
				return "", jobs.Skip(fmt.Sprintf("chapter %d is already translated", p.ChapterID))
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("translated %d of %d units, %d with residue", res.Translated, res.Units, len(res.Warnings)), nil

		case jobs.KindReviewChapter:
			res, err := o.ReviewChapter(ctx, p.ChapterID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("score %.1f over %d units (%d failed)", res.Score, res.Reviewed, res.Failed), nil

		case jobs.KindGenerateGlossary:
			if planner == nil {
				return "", errs.NewError(errs.ErrConfig, "glossary planner is not configured")
			}
			sum, err := planner.Generate(ctx, p.CorpusID, p.FromStart)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d batches, %d chapters, %d new terms (%d total), checkpoint %d",
				sum.Batches, sum.ChaptersProcessed, sum.NewTerms, sum.TotalTerms, sum.Checkpoint), nil

		default:
			return "", errs.Errorf(errs.ErrValidation, "unknown job kind %q", job.Kind)
		}
	}
}

package service

import (
	"context"
	"strings"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
	"github.com/MimeLyc/contextual-novel-translator/internal/residue"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type FixResult struct {
	Chapter corpus.Chapter `json:"chapter"`
	Before  residue.Result `json:"before"`
	After   residue.Result `json:"after"`
	Changed bool           `json:"changed"`
}

// FixChapter asks the generation service to rewrite the leftover foreign
// script of a translated chapter. A chapter without residue is returned
// as is. A reply in the wrong format keeps the current translation.
func (o *Orchestrator) FixChapter(ctx context.Context, chapterID int64) (FixResult, error) {
	unlock, err := o.locks.Lock(ctx, chapterID)
	if err != nil {
		return FixResult{}, err
	}
	defer unlock()

	ch, err := o.chapter(ctx, chapterID)
	if err != nil {
		return FixResult{}, err
	}
	if !ch.Translated() {
		return FixResult{}, errs.Errorf(errs.ErrValidation, "chapter %d has no translation", chapterID)
	}

	result := FixResult{Chapter: ch.Chapter, Before: o.detector.Detect(ch.Translation)}
	result.After = result.Before
	if !result.Before.HasForeign {
		return result, nil
	}

	c, err := o.corpus(ctx, ch.CorpusID)
	if err != nil {
		return result, err
	}
	terms, err := o.store.ListGlossary(ctx, c.ID)
	if err != nil {
		return result, errs.WrapError(err, errs.ErrStore, "failed to list glossary")
	}

	var fixed translator.TranslateResult
	err = o.call(ctx, "fix", func(cred credential.Credential) error {
		var err error
		fixed, err = o.gen.Fix(ctx, cred, translator.FixRequest{
			SourceTitle:      ch.Title,
			SourceContent:    ch.Body,
			TitleTranslation: ch.TitleTranslation,
			Translation:      ch.Translation,
			Glossary:         glossary.Context(terms),
			SourceLanguage:   o.sourceLanguage(ctx, c, ch.Body),
		})
		return err
	})
	if errs.IsErrorType(err, errs.ErrParse) {
		log.Warn("Fix of chapter %d returned an unusable reply, keeping the translation: %v", chapterID, err)
		return result, nil
	}
	if err != nil {
		return result, err
	}
	content := strings.TrimSpace(fixed.Content)
	if content == "" {
		log.Warn("Fix of chapter %d returned no content, keeping the translation", chapterID)
		return result, nil
	}

	ch.Translation = content
	if title := strings.TrimSpace(fixed.Title); title != "" {
		ch.TitleTranslation = title
	}
	result.After = o.detector.Detect(ch.Translation)
	ch.Warning = result.After.Message
	if err := o.store.SaveChapter(ctx, ch.Chapter); err != nil {
		return result, errs.WrapError(err, errs.ErrStore, "failed to save fixed chapter")
	}
	result.Chapter = ch.Chapter
	result.Changed = true
	log.Info("Chapter %d fixed: %d foreign characters before, %d after",
		chapterID, result.Before.Total, result.After.Total)
	return result, nil
}

// Highlight marks the foreign-script runs of a chapter translation in HTML.
func (o *Orchestrator) Highlight(ctx context.Context, chapterID int64) (string, residue.Result, error) {
	ch, err := o.chapter(ctx, chapterID)
	if err != nil {
		return "", residue.Result{}, err
	}
	return o.detector.Highlight(ch.Translation, residue.HTMLMarker), o.detector.Detect(ch.Translation), nil
}

// HighlightSegment is Highlight for one unit.
func (o *Orchestrator) HighlightSegment(ctx context.Context, segmentID int64) (string, residue.Result, error) {
	seg, err := o.segment(ctx, segmentID)
	if err != nil {
		return "", residue.Result{}, err
	}
	return o.detector.Highlight(seg.Translation, residue.HTMLMarker), o.detector.Detect(seg.Translation), nil
}

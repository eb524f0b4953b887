package service

import (
	"context"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type SegmentResult struct {
	Segment  corpus.Segment   `json:"segment"`
	Progress segment.Progress `json:"progress"`
	// Merged is set when this unit completed the chapter.
	Merged bool `json:"merged"`
}

type ChapterResult struct {
	Chapter    corpus.Chapter `json:"chapter"`
	Units      int            `json:"units"`
	Translated int            `json:"translated"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// TranslateSegment translates one unit. A unit that already has a translation
// is declined unless override is set. When it was the last untranslated unit
// the chapter is merged.
func (o *Orchestrator) TranslateSegment(ctx context.Context, segmentID int64, override bool) (SegmentResult, error) {
	seg, err := o.segment(ctx, segmentID)
	if err != nil {
		return SegmentResult{}, err
	}
	if seg.Translated() && !override {
		return SegmentResult{}, errs.Errorf(errs.ErrAlreadyTranslated, "segment %d is already translated", segmentID)
	}

	unlock, err := o.locks.Lock(ctx, seg.ChapterID)
	if err != nil {
		return SegmentResult{}, err
	}
	defer unlock()

	// Re-read under the lock: the chapter may have been re-segmented or the
	// unit translated by the holder we waited for.
	if seg, err = o.segment(ctx, segmentID); err != nil {
		return SegmentResult{}, err
	}
	if seg.Translated() && !override {
		return SegmentResult{}, errs.Errorf(errs.ErrAlreadyTranslated, "segment %d is already translated", segmentID)
	}
	ch, err := o.chapter(ctx, seg.ChapterID)
	if err != nil {
		return SegmentResult{}, err
	}
	tc, err := o.buildContext(ctx, ch)
	if err != nil {
		return SegmentResult{}, err
	}

	seg, title, err := o.translateUnit(ctx, tc, seg)
	if err != nil {
		return SegmentResult{}, err
	}
	if seg.Index == 1 && title != "" {
		ch.TitleTranslation = title
		if err := o.store.SaveChapter(ctx, ch.Chapter); err != nil {
			return SegmentResult{}, errs.WrapError(err, errs.ErrStore, "failed to save chapter title")
		}
	}

	segs, err := o.segments(ctx, ch.ID)
	if err != nil {
		return SegmentResult{}, err
	}
	result := SegmentResult{Segment: seg, Progress: segment.ProgressOf(segs)}
	if result.Progress.Remaining == 0 {
		if _, err := o.finalize(ctx, ch.Chapter, segs); err != nil {
			return result, err
		}
		result.Merged = true
	}
	return result, nil
}

// TranslateChapter translates every unit of a chapter in order and merges
// the result. The chapter is segmented first when it has no units, and
// re-segmented when override is set. A failing unit aborts the run; units
// translated before it stay stored.
func (o *Orchestrator) TranslateChapter(ctx context.Context, chapterID int64, override bool) (ChapterResult, error) {
	ch, err := o.chapter(ctx, chapterID)
	if err != nil {
		return ChapterResult{}, err
	}
	if ch.Translated() && !override {
		return ChapterResult{}, errs.Errorf(errs.ErrAlreadyTranslated, "chapter %d is already translated", chapterID)
	}

	unlock, err := o.locks.Lock(ctx, chapterID)
	if err != nil {
		return ChapterResult{}, err
	}
	defer unlock()

	if ch, err = o.chapter(ctx, chapterID); err != nil {
		return ChapterResult{}, err
	}
	if ch.Translated() && !override {
		return ChapterResult{}, errs.Errorf(errs.ErrAlreadyTranslated, "chapter %d is already translated", chapterID)
	}
	segs, err := o.segments(ctx, chapterID)
	if err != nil {
		return ChapterResult{}, err
	}
	if len(segs) == 0 || override {
		if segs, err = o.resegment(ctx, ch.Chapter); err != nil {
			return ChapterResult{}, err
		}
	}

	tc, err := o.buildContext(ctx, ch)
	if err != nil {
		return ChapterResult{}, err
	}

	result := ChapterResult{Units: len(segs)}
	start := time.Now()
	for i, seg := range segs {
		if seg.Translated() && !override {
			continue
		}
		translated, title, err := o.translateUnit(ctx, tc, seg)
		if err != nil {
			log.Error("Chapter %d stopped at unit %d/%d: %v", chapterID, seg.Index, len(segs), err)
			result.Chapter = ch.Chapter
			return result, err
		}
		segs[i] = translated
		result.Translated++
		if seg.Index == 1 && title != "" {
			ch.TitleTranslation = title
		}
		if translated.Warning != "" {
			result.Warnings = append(result.Warnings, translated.Warning)
		}
	}

	merged, err := o.finalize(ctx, ch.Chapter, segs)
	result.Chapter = merged
	if err != nil {
		return result, err
	}
	log.Info("Chapter %d translated in %s: %d of %d units, %d with residue",
		chapterID, time.Since(start).Round(time.Millisecond), result.Translated, len(segs), len(result.Warnings))
	return result, nil
}

// translateUnit calls the generation service for one unit, stores the
// translation and its residue warning, and returns the title candidate.
func (o *Orchestrator) translateUnit(ctx context.Context, tc translationContext, seg corpus.Segment) (corpus.Segment, string, error) {
	var res translator.TranslateResult
	err := o.call(ctx, "translate", func(cred credential.Credential) error {
		var err error
		res, err = o.gen.Translate(ctx, cred, translator.TranslateRequest{
			Source:         seg.Source,
			Glossary:       tc.glossary,
			Preceding:      tc.preceding,
			SourceLanguage: tc.sourceLanguage,
		})
		return err
	})
	if err != nil {
		return seg, "", err
	}

	seg.Translation = strings.TrimSpace(res.Content)
	detected := o.detector.Detect(seg.Translation)
	seg.Warning = detected.Message
	if detected.HasForeign {
		log.Warn("Unit %d of chapter %d has %s residue: %d foreign characters",
			seg.Index, seg.ChapterID, detected.Severity, detected.Total)
	}
	if err := o.store.SaveSegment(ctx, seg); err != nil {
		return seg, "", errs.WrapError(err, errs.ErrStore, "failed to save segment")
	}
	return seg, strings.TrimSpace(res.Title), nil
}

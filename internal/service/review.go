package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type ChapterReview struct {
	ChapterID int64   `json:"chapter_id"`
	Reviewed  int     `json:"reviewed"`
	Failed    int     `json:"failed"`
	Score     float64 `json:"score"`
	Report    string  `json:"report"`
}

// CorpusReview sums up a review run over a corpus or one of its volumes.
type CorpusReview struct {
	CorpusID int64   `json:"corpus_id"`
	VolumeID int64   `json:"volume_id,omitempty"`
	Chapters int     `json:"chapters"`
	Failed   int     `json:"failed"`
	Average  float64 `json:"average"`
	LowScore int     `json:"low_score"`
}

type ChapterScore struct {
	ChapterID    int64   `json:"chapter_id"`
	Title        string  `json:"title"`
	VolumeID     int64   `json:"volume_id"`
	VolumeIndex  int     `json:"volume_index"`
	ChapterIndex int     `json:"chapter_index"`
	Score        float64 `json:"score"`
	Report       string  `json:"report,omitempty"`
}

// ReviewStats lists the translated chapters of a corpus with their stored
// scores.
type ReviewStats struct {
	CorpusID int64          `json:"corpus_id"`
	Chapters []ChapterScore `json:"chapters"`
	Reviewed int            `json:"reviewed"`
	Average  float64        `json:"average"`
	LowScore int            `json:"low_score"`
}

// reviewText scores one translation. A provider failure becomes a zero
// score carrying the error text so the caller can move on.
func (o *Orchestrator) reviewText(ctx context.Context, source, translated, sourceLanguage string) (translator.ReviewResult, bool, error) {
	var res translator.ReviewResult
	err := o.call(ctx, "review", func(cred credential.Credential) error {
		var err error
		res, err = o.gen.Review(ctx, cred, source, translated, sourceLanguage)
		return err
	})
	if err == nil {
		return res, true, nil
	}
	if isCanceled(err) || ctx.Err() != nil {
		return res, false, err
	}
	if errs.TypeOf(err) == errs.ErrStore || errs.TypeOf(err) == errs.ErrConfig {
		return res, false, err
	}
	log.Warn("Review failed, recording score 0: %v", err)
	return translator.ReviewResult{Score: 0, Report: err.Error()}, false, nil
}

// ReviewSegment scores one translated unit and stores the result. The
// chapter stays locked so a concurrent translation cannot be interleaved.
func (o *Orchestrator) ReviewSegment(ctx context.Context, segmentID int64) (corpus.Segment, error) {
	seg, err := o.segment(ctx, segmentID)
	if err != nil {
		return seg, err
	}
	unlock, err := o.locks.Lock(ctx, seg.ChapterID)
	if err != nil {
		return seg, err
	}
	defer unlock()

	if seg, err = o.segment(ctx, segmentID); err != nil {
		return seg, err
	}
	if !seg.Translated() {
		return seg, errs.Errorf(errs.ErrValidation, "segment %d has no translation", segmentID)
	}
	ch, err := o.chapter(ctx, seg.ChapterID)
	if err != nil {
		return seg, err
	}
	c, err := o.corpus(ctx, ch.CorpusID)
	if err != nil {
		return seg, err
	}

	res, _, err := o.reviewText(ctx, seg.Source, seg.Translation, o.sourceLanguage(ctx, c, seg.Source))
	if err != nil {
		return seg, err
	}
	seg.Score = res.Score
	seg.ReviewReport = res.Report
	if err := o.store.SaveSegmentReview(ctx, seg.ID, seg.Score, seg.ReviewReport); err != nil {
		return seg, errs.WrapError(err, errs.ErrStore, "failed to save segment review")
	}
	return seg, nil
}

// ReviewChapter scores every translated unit of a chapter. The chapter score
// is the mean over the reviewed units, 0 when none is translated, and the
// report lists the unit reports. A translated chapter without units is
// reviewed as a whole.
func (o *Orchestrator) ReviewChapter(ctx context.Context, chapterID int64) (ChapterReview, error) {
	unlock, err := o.locks.Lock(ctx, chapterID)
	if err != nil {
		return ChapterReview{}, err
	}
	defer unlock()

	ch, err := o.chapter(ctx, chapterID)
	if err != nil {
		return ChapterReview{}, err
	}
	c, err := o.corpus(ctx, ch.CorpusID)
	if err != nil {
		return ChapterReview{}, err
	}
	segs, err := o.segments(ctx, chapterID)
	if err != nil {
		return ChapterReview{}, err
	}
	lang := o.sourceLanguage(ctx, c, ch.Body)

	review := ChapterReview{ChapterID: chapterID}
	if len(segs) == 0 && ch.Translated() {
		segs = []corpus.Segment{{Index: 1, Source: ch.Body, Translation: ch.Translation}}
	}

	var total float64
	var reports []string
	for _, seg := range segs {
		if !seg.Translated() {
			continue
		}
		res, ok, err := o.reviewText(ctx, seg.Source, seg.Translation, lang)
		if err != nil {
			return review, err
		}
		if !ok {
			review.Failed++
		}
		review.Reviewed++
		total += res.Score
		if report := strings.TrimSpace(res.Report); report != "" {
			reports = append(reports, fmt.Sprintf("Unit %d: %s", seg.Index, strings.ReplaceAll(report, "\n", "; ")))
		}

		if seg.ID == 0 {
			continue
		}
		if err := o.store.SaveSegmentReview(ctx, seg.ID, res.Score, res.Report); err != nil {
			return review, errs.WrapError(err, errs.ErrStore, "failed to save segment review")
		}
	}

	if review.Reviewed > 0 {
		review.Score = total / float64(review.Reviewed)
	}
	review.Report = strings.Join(reports, "\n")
	if err := o.store.SaveChapterReview(ctx, chapterID, review.Score, review.Report); err != nil {
		return review, errs.WrapError(err, errs.ErrStore, "failed to save chapter review")
	}
	log.Info("Chapter %d reviewed: %.1f over %d units (%d failed)", chapterID, review.Score, review.Reviewed, review.Failed)
	return review, nil
}

// ReviewCorpus reviews every translated chapter of a corpus, a few chapters
// at a time. A chapter that cannot be reviewed is counted and skipped.
func (o *Orchestrator) ReviewCorpus(ctx context.Context, corpusID int64) (CorpusReview, error) {
	if _, err := o.corpus(ctx, corpusID); err != nil {
		return CorpusReview{}, err
	}
	chapters, err := o.store.ListCorpusChapters(ctx, corpusID)
	if err != nil {
		return CorpusReview{}, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
	}

	stats, err := o.reviewChapters(ctx, CorpusReview{CorpusID: corpusID}, chapters)
	if err != nil {
		return stats, err
	}
	log.Info("Corpus %d reviewed: %d chapters, average %.1f, %d below %.0f",
		corpusID, stats.Chapters, stats.Average, stats.LowScore, LowScore)
	return stats, nil
}

// ReviewVolume reviews the translated chapters of one volume.
func (o *Orchestrator) ReviewVolume(ctx context.Context, volumeID int64) (CorpusReview, error) {
	v, found, err := o.store.GetVolume(ctx, volumeID)
	if err != nil {
		return CorpusReview{}, errs.WrapError(err, errs.ErrStore, "failed to load volume")
	}
	if !found {
		return CorpusReview{}, errs.Errorf(errs.ErrNotFound, "volume %d not found", volumeID)
	}
	all, err := o.store.ListCorpusChapters(ctx, v.CorpusID)
	if err != nil {
		return CorpusReview{}, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
	}
	var chapters []corpus.ChapterRef
	for _, ch := range all {
		if ch.VolumeID == volumeID {
			chapters = append(chapters, ch)
		}
	}

	stats, err := o.reviewChapters(ctx, CorpusReview{CorpusID: v.CorpusID, VolumeID: volumeID}, chapters)
	if err != nil {
		return stats, err
	}
	log.Info("Volume %d reviewed: %d chapters, average %.1f, %d below %.0f",
		volumeID, stats.Chapters, stats.Average, stats.LowScore, LowScore)
	return stats, nil
}

func (o *Orchestrator) reviewChapters(ctx context.Context, stats CorpusReview, chapters []corpus.ChapterRef) (CorpusReview, error) {
	var (
		mu     sync.Mutex
		scores float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.reviewWorkers)
	for _, ch := range chapters {
		if !ch.Translated() {
			continue
		}
		id := ch.ID
		g.Go(func() error {
			review, err := o.ReviewChapter(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if isCanceled(err) {
					return err
				}
				log.Warn("Skipping review of chapter %d: %v", id, err)
				stats.Failed++
				return nil
			}
			stats.Chapters++
			scores += review.Score
			if review.Score < LowScore {
				stats.LowScore++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if stats.Chapters > 0 {
		stats.Average = scores / float64(stats.Chapters)
	}
	return stats, nil
}

// ReviewStats summarizes the stored chapter scores of a corpus without
// calling the generation service. Only chapters scored above 0 count as
// reviewed.
func (o *Orchestrator) ReviewStats(ctx context.Context, corpusID int64) (ReviewStats, error) {
	if _, err := o.corpus(ctx, corpusID); err != nil {
		return ReviewStats{}, err
	}
	chapters, err := o.store.ListCorpusChapters(ctx, corpusID)
	if err != nil {
		return ReviewStats{}, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
	}

	stats := ReviewStats{CorpusID: corpusID, Chapters: make([]ChapterScore, 0, len(chapters))}
	var total float64
	for _, ch := range chapters {
		if !ch.Translated() {
			continue
		}
		title := ch.TitleTranslation
		if title == "" {
			title = ch.Title
		}
		stats.Chapters = append(stats.Chapters, ChapterScore{
			ChapterID:    ch.ID,
			Title:        title,
			VolumeID:     ch.VolumeID,
			VolumeIndex:  ch.VolumeIndex,
			ChapterIndex: ch.Index,
			Score:        ch.Score,
			Report:       ch.ReviewReport,
		})
		if ch.Score <= 0 {
			continue
		}
		stats.Reviewed++
		total += ch.Score
		if ch.Score < LowScore {
			stats.LowScore++
		}
	}
	if stats.Reviewed > 0 {
		stats.Average = math.Round(total/float64(stats.Reviewed)*10) / 10
	}
	return stats, nil
}

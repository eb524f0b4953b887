package library

import (
	"context"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type Store interface {
	ListVolumes(ctx context.Context, corpusID int64) ([]corpus.Volume, error)
	CreateVolume(ctx context.Context, v corpus.Volume) (corpus.Volume, error)
	ListChapters(ctx context.Context, volumeID int64, translatedOnly bool) ([]corpus.Chapter, error)
	CreateChapter(ctx context.Context, ch corpus.Chapter) (corpus.Chapter, error)
}

// IngestResult counts what one ingest created.
type IngestResult struct {
	Volumes  int `json:"volumes"`
	Chapters int `json:"chapters"`
	Skipped  int `json:"skipped"`
	Words    int `json:"words"`
}

// Ingest adds the chapters of layout to a corpus. Volumes are matched by
// index and chapters that already exist are left alone, so a re-run only
// picks up new files.
func Ingest(ctx context.Context, store Store, corpusID int64, layout Layout) (IngestResult, error) {
	var result IngestResult

	existing, err := store.ListVolumes(ctx, corpusID)
	if err != nil {
		return result, errs.WrapError(err, errs.ErrStore, "failed to list volumes")
	}
	volumes := make(map[int]corpus.Volume, len(existing))
	for _, v := range existing {
		volumes[v.Index] = v
	}

	for _, vd := range layout.Volumes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		vol, ok := volumes[vd.Index]
		if !ok {
			vol, err = store.CreateVolume(ctx, corpus.Volume{CorpusID: corpusID, Index: vd.Index, Title: vd.Title})
			if err != nil {
				return result, errs.WrapError(err, errs.ErrStore, "failed to create volume").WithContext("volume", vd.Index)
			}
			result.Volumes++
		}

		chapters, err := store.ListChapters(ctx, vol.ID, false)
		if err != nil {
			return result, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
		}
		have := make(map[int]bool, len(chapters))
		for _, ch := range chapters {
			have[ch.Index] = true
		}

		for _, cf := range vd.Chapters {
			if have[cf.Index] {
				result.Skipped++
				continue
			}
			text, err := ReadChapter(cf.Path)
			if err != nil {
				return result, err
			}
			body := splitHeading(cf.Title, text)
			if body == "" {
				log.Warn("Skipping empty chapter file %s", cf.Path)
				result.Skipped++
				continue
			}
			if _, err := store.CreateChapter(ctx, corpus.Chapter{
				VolumeID: vol.ID,
				Index:    cf.Index,
				Title:    cf.Title,
				Body:     body,
				Status:   corpus.StatusPending,
			}); err != nil {
				return result, errs.WrapError(err, errs.ErrStore, "failed to create chapter").WithContext("path", cf.Path)
			}
			result.Chapters++
			result.Words += segment.WordCount(body)
		}
	}

	log.Info("Ingested %s into corpus %d: %d volumes, %d chapters, %d skipped",
		layout.Root, corpusID, result.Volumes, result.Chapters, result.Skipped)
	return result, nil
}

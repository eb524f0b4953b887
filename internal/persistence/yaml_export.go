package persistence

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
)

// ExportCorpus writes a corpus with its glossary, chapters and segments as
// YAML.
func (s *SQLiteStore) ExportCorpus(ctx context.Context, corpusID int64, w io.Writer) error {
	c, found, err := s.GetCorpus(ctx, corpusID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("corpus %d not found", corpusID)
	}

	doc := CorpusDocument{
		Version:        Version,
		Title:          c.Title,
		Description:    c.Description,
		SourceLanguage: c.SourceLanguage,
		Checkpoint:     c.Checkpoint,
	}

	terms, err := s.ListGlossary(ctx, corpusID)
	if err != nil {
		return err
	}
	for _, t := range terms {
		doc.Glossary = append(doc.Glossary, GlossaryEntry{Source: t.SourceTerm, Target: t.TargetTerm, Note: t.Note})
	}

	volumes, err := s.ListVolumes(ctx, corpusID)
	if err != nil {
		return err
	}
	for _, v := range volumes {
		vd := VolumeDocument{Index: v.Index, Title: v.Title}
		chapters, err := s.ListChapters(ctx, v.ID, false)
		if err != nil {
			return err
		}
		for _, ch := range chapters {
			cd := ChapterDocument{
				Index:            ch.Index,
				Title:            ch.Title,
				TitleTranslation: ch.TitleTranslation,
				Body:             ch.Body,
				Translation:      ch.Translation,
				Status:           string(ch.Status),
				Score:            ch.Score,
				ReviewReport:     ch.ReviewReport,
				Warning:          ch.Warning,
			}
			segments, err := s.ListSegments(ctx, ch.ID)
			if err != nil {
				return err
			}
			for _, seg := range segments {
				cd.Segments = append(cd.Segments, SegmentDocument{
					ID:           SegmentID(v.Index, ch.Index, seg.Index),
					Source:       seg.Source,
					Translation:  seg.Translation,
					Score:        seg.Score,
					ReviewReport: seg.ReviewReport,
					Warning:      seg.Warning,
				})
			}
			vd.Chapters = append(vd.Chapters, cd)
		}
		doc.Volumes = append(doc.Volumes, vd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	return enc.Close()
}

// ImportCorpus creates a new corpus from an export. Everything is written in
// one transaction.
func (s *SQLiteStore) ImportCorpus(ctx context.Context, r io.Reader) (corpus.Corpus, error) {
	var doc CorpusDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return corpus.Corpus{}, fmt.Errorf("decode corpus: %w", err)
	}
	if doc.Version > Version {
		return corpus.Corpus{}, fmt.Errorf("unsupported corpus format version %d", doc.Version)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return corpus.Corpus{}, fmt.Errorf("corpus title is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return corpus.Corpus{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var c corpus.Corpus
	c, err = createCorpus(ctx, tx, corpus.Corpus{
		Title:          doc.Title,
		Description:    doc.Description,
		SourceLanguage: doc.SourceLanguage,
		Checkpoint:     doc.Checkpoint,
	})
	if err != nil {
		return corpus.Corpus{}, err
	}

	for _, g := range doc.Glossary {
		if _, err = insertGlossaryTerm(ctx, tx, corpus.GlossaryTerm{
			CorpusID: c.ID, SourceTerm: g.Source, TargetTerm: g.Target, Note: g.Note,
		}); err != nil {
			return corpus.Corpus{}, err
		}
	}

	for _, vd := range doc.Volumes {
		var v corpus.Volume
		v, err = createVolume(ctx, tx, corpus.Volume{CorpusID: c.ID, Index: vd.Index, Title: vd.Title})
		if err != nil {
			return corpus.Corpus{}, fmt.Errorf("volume %d: %w", vd.Index, err)
		}
		for _, cd := range vd.Chapters {
			var ch corpus.Chapter
			ch, err = createChapter(ctx, tx, corpus.Chapter{
				VolumeID:         v.ID,
				Index:            cd.Index,
				Title:            cd.Title,
				Body:             cd.Body,
				TitleTranslation: cd.TitleTranslation,
				Translation:      cd.Translation,
				Status:           corpus.ChapterStatus(cd.Status),
				Score:            cd.Score,
				ReviewReport:     cd.ReviewReport,
				Warning:          cd.Warning,
			})
			if err != nil {
				return corpus.Corpus{}, fmt.Errorf("volume %d chapter %d: %w", vd.Index, cd.Index, err)
			}
			if err = importSegments(ctx, tx, v.Index, ch, cd.Segments); err != nil {
				return corpus.Corpus{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return corpus.Corpus{}, err
	}
	return c, nil
}

// importSegments keeps the segment numbering of the export. Ids that do not
// match their chapter are rejected so a hand-edited file cannot scramble
// segments across chapters.
func importSegments(ctx context.Context, db execer, volumeIndex int, ch corpus.Chapter, segments []SegmentDocument) error {
	for i, sd := range segments {
		index := i + 1
		if sd.ID != "" {
			v, c, n, ok := ParseSegmentID(sd.ID)
			if !ok || v != volumeIndex || c != ch.Index || n != index {
				return fmt.Errorf("segment %q does not belong at volume %d chapter %d position %d", sd.ID, volumeIndex, ch.Index, index)
			}
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO segments (chapter_id, idx, source, translation, score, review_report, warning) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ch.ID, index, sd.Source, sd.Translation, sd.Score, sd.ReviewReport, sd.Warning); err != nil {
			return err
		}
	}
	return nil
}

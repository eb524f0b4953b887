package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) CreateCorpus(ctx context.Context, c corpus.Corpus) (corpus.Corpus, error) {
	return createCorpus(ctx, s.db, c)
}

func createCorpus(ctx context.Context, db execer, c corpus.Corpus) (corpus.Corpus, error) {
	if strings.TrimSpace(c.Title) == "" {
		return corpus.Corpus{}, fmt.Errorf("corpus title is required")
	}
	if c.Checkpoint == 0 {
		c.Checkpoint = corpus.ParseCheckpointMarker(c.Description)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO corpora (title, description, source_language, checkpoint) VALUES (?, ?, ?, ?)`,
		c.Title, c.Description, c.SourceLanguage, c.Checkpoint)
	if err != nil {
		return corpus.Corpus{}, err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return corpus.Corpus{}, err
	}
	return c, nil
}

const corpusColumns = `id, title, description, source_language, checkpoint`

func scanCorpus(row rowScanner) (corpus.Corpus, error) {
	var c corpus.Corpus
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.SourceLanguage, &c.Checkpoint)
	return c, err
}

func (s *SQLiteStore) GetCorpus(ctx context.Context, id int64) (corpus.Corpus, bool, error) {
	c, err := scanCorpus(s.db.QueryRowContext(ctx, `SELECT `+corpusColumns+` FROM corpora WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return corpus.Corpus{}, false, nil
		}
		return corpus.Corpus{}, false, err
	}
	return c, true, nil
}

func (s *SQLiteStore) ListCorpora(ctx context.Context) ([]corpus.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+corpusColumns+` FROM corpora ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.Corpus, 0)
	for rows.Next() {
		c, err := scanCorpus(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

// SetCheckpoint stores the glossary checkpoint. A legacy marker in the
// description is rewritten so both never disagree.
func (s *SQLiteStore) SetCheckpoint(ctx context.Context, corpusID int64, checkpoint int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var description string
	if err = tx.QueryRowContext(ctx, `SELECT description FROM corpora WHERE id = ?`, corpusID).Scan(&description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("corpus %d not found", corpusID)
		}
		return err
	}
	if corpus.HasCheckpointMarker(description) {
		description = corpus.WithCheckpointMarker(description, checkpoint)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE corpora SET checkpoint = ?, description = ? WHERE id = ?`,
		checkpoint, description, corpusID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetSourceLanguage(ctx context.Context, corpusID int64, lang string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE corpora SET source_language = ? WHERE id = ?`, lang, corpusID)
	return err
}

func (s *SQLiteStore) CreateVolume(ctx context.Context, v corpus.Volume) (corpus.Volume, error) {
	return createVolume(ctx, s.db, v)
}

func createVolume(ctx context.Context, db execer, v corpus.Volume) (corpus.Volume, error) {
	if v.Index <= 0 {
		return corpus.Volume{}, fmt.Errorf("volume index must be positive, got %d", v.Index)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO volumes (corpus_id, idx, title) VALUES (?, ?, ?)`,
		v.CorpusID, v.Index, v.Title)
	if err != nil {
		return corpus.Volume{}, err
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return corpus.Volume{}, err
	}
	return v, nil
}

func (s *SQLiteStore) GetVolume(ctx context.Context, id int64) (corpus.Volume, bool, error) {
	var v corpus.Volume
	err := s.db.QueryRowContext(ctx,
		`SELECT id, corpus_id, idx, title FROM volumes WHERE id = ?`, id).
		Scan(&v.ID, &v.CorpusID, &v.Index, &v.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return corpus.Volume{}, false, nil
		}
		return corpus.Volume{}, false, err
	}
	return v, true, nil
}

// ListVolumes returns the volumes of a corpus ordered by index.
func (s *SQLiteStore) ListVolumes(ctx context.Context, corpusID int64) ([]corpus.Volume, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, corpus_id, idx, title FROM volumes WHERE corpus_id = ? ORDER BY idx ASC`, corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.Volume, 0)
	for rows.Next() {
		var v corpus.Volume
		if err := rows.Scan(&v.ID, &v.CorpusID, &v.Index, &v.Title); err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) CreateChapter(ctx context.Context, ch corpus.Chapter) (corpus.Chapter, error) {
	return createChapter(ctx, s.db, ch)
}

func createChapter(ctx context.Context, db execer, ch corpus.Chapter) (corpus.Chapter, error) {
	if ch.Index <= 0 {
		return corpus.Chapter{}, fmt.Errorf("chapter index must be positive, got %d", ch.Index)
	}
	if ch.Status == "" {
		ch.Status = corpus.StatusPending
	}
	ch.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO chapters (volume_id, idx, title, body, title_translation, translation, status, score, review_report, warning, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.VolumeID, ch.Index, ch.Title, ch.Body, ch.TitleTranslation, ch.Translation,
		string(ch.Status), ch.Score, ch.ReviewReport, ch.Warning, ch.UpdatedAt)
	if err != nil {
		return corpus.Chapter{}, err
	}
	if ch.ID, err = res.LastInsertId(); err != nil {
		return corpus.Chapter{}, err
	}
	return ch, nil
}

const chapterColumns = `c.id, c.volume_id, c.idx, c.title, c.body, c.title_translation, c.translation,
	c.status, c.score, c.review_report, c.warning, c.updated_at`

func scanChapter(row rowScanner, extra ...any) (corpus.Chapter, error) {
	var ch corpus.Chapter
	var status string
	dest := []any{
		&ch.ID, &ch.VolumeID, &ch.Index, &ch.Title, &ch.Body, &ch.TitleTranslation, &ch.Translation,
		&status, &ch.Score, &ch.ReviewReport, &ch.Warning, &ch.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return corpus.Chapter{}, err
	}
	ch.Status = corpus.ChapterStatus(status)
	return ch, nil
}

// GetChapter returns a chapter with its volume index and corpus.
func (s *SQLiteStore) GetChapter(ctx context.Context, id int64) (corpus.ChapterRef, bool, error) {
	var ref corpus.ChapterRef
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+`, v.idx, v.corpus_id
		 FROM chapters c JOIN volumes v ON v.id = c.volume_id
		 WHERE c.id = ?`, id)
	ch, err := scanChapter(row, &ref.VolumeIndex, &ref.CorpusID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return corpus.ChapterRef{}, false, nil
		}
		return corpus.ChapterRef{}, false, err
	}
	ref.Chapter = ch
	return ref, true, nil
}

// ListChapters returns the chapters of a volume ordered by index.
func (s *SQLiteStore) ListChapters(ctx context.Context, volumeID int64, translatedOnly bool) ([]corpus.Chapter, error) {
	query := `SELECT ` + chapterColumns + ` FROM chapters c WHERE c.volume_id = ?`
	if translatedOnly {
		query += ` AND trim(c.translation) <> ''`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY c.idx ASC`, volumeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.Chapter, 0)
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ch)
	}
	return ret, rows.Err()
}

// ListCorpusChapters returns every chapter of a corpus in (volume index,
// chapter index) order.
func (s *SQLiteStore) ListCorpusChapters(ctx context.Context, corpusID int64) ([]corpus.ChapterRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chapterColumns+`, v.idx, v.corpus_id
		 FROM chapters c JOIN volumes v ON v.id = c.volume_id
		 WHERE v.corpus_id = ?
		 ORDER BY v.idx ASC, c.idx ASC`, corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.ChapterRef, 0)
	for rows.Next() {
		var ref corpus.ChapterRef
		ch, err := scanChapter(rows, &ref.VolumeIndex, &ref.CorpusID)
		if err != nil {
			return nil, err
		}
		ref.Chapter = ch
		ret = append(ret, ref)
	}
	return ret, rows.Err()
}

// SaveChapter writes the translation side of a chapter. Source title and body
// are never changed here.
func (s *SQLiteStore) SaveChapter(ctx context.Context, ch corpus.Chapter) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET
			title_translation = ?, translation = ?, status = ?, score = ?, review_report = ?, warning = ?, updated_at = ?
		 WHERE id = ?`,
		ch.TitleTranslation, ch.Translation, string(ch.Status), ch.Score, ch.ReviewReport, ch.Warning,
		time.Now().UTC(), ch.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "chapter", ch.ID)
}

// SaveChapterReview updates only the score and report of a chapter.
func (s *SQLiteStore) SaveChapterReview(ctx context.Context, chapterID int64, score float64, report string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET score = ?, review_report = ?, updated_at = ? WHERE id = ?`,
		score, report, time.Now().UTC(), chapterID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "chapter", chapterID)
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return nil
}

// ReplaceSegments drops every segment of a chapter and inserts sources as
// segments 1..N in one transaction.
func (s *SQLiteStore) ReplaceSegments(ctx context.Context, chapterID int64, sources []string) ([]corpus.Segment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM segments WHERE chapter_id = ?`, chapterID); err != nil {
		return nil, err
	}
	ret := make([]corpus.Segment, 0, len(sources))
	for i, source := range sources {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`INSERT INTO segments (chapter_id, idx, source) VALUES (?, ?, ?)`,
			chapterID, i+1, source)
		if err != nil {
			return nil, err
		}
		var id int64
		if id, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		ret = append(ret, corpus.Segment{ID: id, ChapterID: chapterID, Index: i + 1, Source: source})
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return ret, nil
}

const segmentColumns = `id, chapter_id, idx, source, translation, score, review_report, warning`

func scanSegment(row rowScanner) (corpus.Segment, error) {
	var seg corpus.Segment
	err := row.Scan(&seg.ID, &seg.ChapterID, &seg.Index, &seg.Source, &seg.Translation,
		&seg.Score, &seg.ReviewReport, &seg.Warning)
	return seg, err
}

func (s *SQLiteStore) GetSegment(ctx context.Context, id int64) (corpus.Segment, bool, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return corpus.Segment{}, false, nil
		}
		return corpus.Segment{}, false, err
	}
	return seg, true, nil
}

// ListSegments returns the segments of a chapter ordered by index.
func (s *SQLiteStore) ListSegments(ctx context.Context, chapterID int64) ([]corpus.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE chapter_id = ? ORDER BY idx ASC`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.Segment, 0)
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, seg)
	}
	return ret, rows.Err()
}

// SaveSegment writes translation, review and warning of a segment.
func (s *SQLiteStore) SaveSegment(ctx context.Context, seg corpus.Segment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments SET translation = ?, score = ?, review_report = ?, warning = ? WHERE id = ?`,
		seg.Translation, seg.Score, seg.ReviewReport, seg.Warning, seg.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "segment", seg.ID)
}

// SaveSegmentReview updates only the score and report of a segment.
func (s *SQLiteStore) SaveSegmentReview(ctx context.Context, segmentID int64, score float64, report string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments SET score = ?, review_report = ? WHERE id = ?`,
		score, report, segmentID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "segment", segmentID)
}

// ListGlossary returns the terms of a corpus in insertion order.
func (s *SQLiteStore) ListGlossary(ctx context.Context, corpusID int64) ([]corpus.GlossaryTerm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT corpus_id, source_term, target_term, note FROM glossary_terms WHERE corpus_id = ? ORDER BY rowid ASC`,
		corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]corpus.GlossaryTerm, 0)
	for rows.Next() {
		var t corpus.GlossaryTerm
		if err := rows.Scan(&t.CorpusID, &t.SourceTerm, &t.TargetTerm, &t.Note); err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, rows.Err()
}

// InsertGlossaryTerm keeps an existing term with the same source and reports
// whether a row was added.
func (s *SQLiteStore) InsertGlossaryTerm(ctx context.Context, term corpus.GlossaryTerm) (bool, error) {
	return insertGlossaryTerm(ctx, s.db, term)
}

func insertGlossaryTerm(ctx context.Context, db execer, term corpus.GlossaryTerm) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO glossary_terms (corpus_id, source_term, target_term, note) VALUES (?, ?, ?, ?)
		 ON CONFLICT(corpus_id, source_term) DO NOTHING`,
		term.CorpusID, term.SourceTerm, term.TargetTerm, term.Note)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) UpsertGlossaryTerm(ctx context.Context, term corpus.GlossaryTerm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO glossary_terms (corpus_id, source_term, target_term, note) VALUES (?, ?, ?, ?)
		 ON CONFLICT(corpus_id, source_term) DO UPDATE SET
			target_term=excluded.target_term,
			note=excluded.note`,
		term.CorpusID, term.SourceTerm, term.TargetTerm, term.Note)
	return err
}

func (s *SQLiteStore) DeleteGlossaryTerm(ctx context.Context, corpusID int64, sourceTerm string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM glossary_terms WHERE corpus_id = ? AND source_term = ?`, corpusID, sourceTerm)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

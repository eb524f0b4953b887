// Package persistence is the SQLite corpus store. It also keeps the shared
// rotation state, the credential table and the job queue state.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return s.migrateCheckpointMarkers(ctx)
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// migrateCheckpointMarkers copies "checkpoint:<n>" markers from corpus
// descriptions into the checkpoint column of corpora that have none yet.
func (s *SQLiteStore) migrateCheckpointMarkers(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description FROM corpora WHERE checkpoint = 0 AND description LIKE '%checkpoint:%'`)
	if err != nil {
		return fmt.Errorf("scan checkpoint markers: %w", err)
	}
	type marker struct {
		id    int64
		value int
	}
	var found []marker
	for rows.Next() {
		var id int64
		var description string
		if err := rows.Scan(&id, &description); err != nil {
			rows.Close()
			return err
		}
		if n := corpus.ParseCheckpointMarker(description); n > 0 {
			found = append(found, marker{id: id, value: n})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, m := range found {
		if _, err := s.db.ExecContext(ctx, `UPDATE corpora SET checkpoint = ? WHERE id = ?`, m.value, m.id); err != nil {
			return fmt.Errorf("migrate checkpoint of corpus %d: %w", m.id, err)
		}
		log.Info("Migrated glossary checkpoint %d of corpus %d from its description", m.value, m.id)
	}
	return nil
}

// Get, Set and CompareAndSwap make the store a credential.StateStore shared
// by every process using the same database file.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

// CompareAndSwap writes value only while the stored value still equals old.
// An empty old means the key must not exist yet.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key, old, value string) (bool, error) {
	var res sql.Result
	var err error
	if old == "" {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value, time.Now().UTC())
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE kv_state SET value = ?, updated_at = ? WHERE key = ? AND value = ?`,
			value, time.Now().UTC(), key, old)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, source, dedupe_key, corpus_id, chapter_id, override, from_start, status, result, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var item jobs.Job
		var kind, status string
		var override, fromStart int
		if err := rows.Scan(
			&item.ID,
			&kind,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.CorpusID,
			&item.Payload.ChapterID,
			&override,
			&fromStart,
			&status,
			&item.Result,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Kind = jobs.Kind(kind)
		item.Status = jobs.Status(status)
		item.Payload.Override = override == 1
		item.Payload.FromStart = fromStart == 1
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, kind, source, dedupe_key, corpus_id, chapter_id, override, from_start, status, result, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			corpus_id=excluded.corpus_id,
			chapter_id=excluded.chapter_id,
			override=excluded.override,
			from_start=excluded.from_start,
			status=excluded.status,
			result=excluded.result,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		string(job.Kind),
		job.Source,
		job.DedupeKey,
		job.Payload.CorpusID,
		job.Payload.ChapterID,
		boolToInt(job.Payload.Override),
		boolToInt(job.Payload.FromStart),
		string(job.Status),
		job.Result,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
)

// AddCredential stores a key. Adding a key that already exists for the
// provider re-activates it and keeps its usage history.
func (s *SQLiteStore) AddCredential(ctx context.Context, c credential.Credential) (credential.Credential, error) {
	c.Secret = strings.TrimSpace(c.Secret)
	c.Provider = strings.TrimSpace(c.Provider)
	if c.Secret == "" || c.Provider == "" {
		return credential.Credential{}, fmt.Errorf("credential secret and provider are required")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (name, secret, provider, active) VALUES (?, ?, ?, 1)
		 ON CONFLICT(provider, secret) DO UPDATE SET
			active=1,
			name=CASE WHEN excluded.name <> '' THEN excluded.name ELSE credentials.name END`,
		c.Name, c.Secret, c.Provider); err != nil {
		return credential.Credential{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE provider = ? AND secret = ?`, c.Provider, c.Secret)
	return scanCredential(row)
}

// SeedCredential stores a key from configuration. A key that is already
// known is left alone so an operator's deactivation survives restarts.
// The result reports whether the key was new.
func (s *SQLiteStore) SeedCredential(ctx context.Context, c credential.Credential) (bool, error) {
	c.Secret = strings.TrimSpace(c.Secret)
	c.Provider = strings.TrimSpace(c.Provider)
	if c.Secret == "" || c.Provider == "" {
		return false, fmt.Errorf("credential secret and provider are required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (name, secret, provider, active) VALUES (?, ?, ?, 1)
		 ON CONFLICT(provider, secret) DO NOTHING`,
		c.Name, c.Secret, c.Provider)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const credentialColumns = `id, name, secret, provider, active, usage_count, last_used_at`

func scanCredential(row rowScanner) (credential.Credential, error) {
	var c credential.Credential
	var active int
	var lastUsed sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Secret, &c.Provider, &active, &c.UsageCount, &lastUsed); err != nil {
		return credential.Credential{}, err
	}
	c.Active = active == 1
	if lastUsed.Valid {
		c.LastUsedAt = lastUsed.Time
	}
	return c, nil
}

// ListCredentials returns the credentials of provider ordered by id, or of
// every provider when provider is empty.
func (s *SQLiteStore) ListCredentials(ctx context.Context, provider string) ([]credential.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials`
	var args []any
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]credential.Credential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) SetCredentialActive(ctx context.Context, id int64, active bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE credentials SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCredentialUsed increments the usage counter in one statement so
// concurrent acquirers never lose an increment.
func (s *SQLiteStore) MarkCredentialUsed(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		at.UTC(), id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "credential", id)
}

package credential

import (
	"context"
	"time"
	"unicode/utf8"
)

// Credential is one API key for a generation provider.
type Credential struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Secret     string    `json:"-"`
	Provider   string    `json:"provider"`
	Active     bool      `json:"active"`
	UsageCount int64     `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Masked renders the secret for logs and listings.
func (c Credential) Masked() string {
	return Mask(c.Secret)
}

// Mask keeps the first 8 and last 4 characters of a secret.
func Mask(secret string) string {
	if utf8.RuneCountInString(secret) <= 12 {
		return "****"
	}
	runes := []rune(secret)
	return string(runes[:8]) + "..." + string(runes[len(runes)-4:])
}

// Source loads credentials and records their usage.
type Source interface {
	ListCredentials(ctx context.Context, provider string) ([]Credential, error)
	MarkCredentialUsed(ctx context.Context, id int64, at time.Time) error
}

// StateStore is a process-wide key/value store without expiry. An empty old
// value in CompareAndSwap means the key must be absent.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	CompareAndSwap(ctx context.Context, key, old, new string) (bool, error)
}

// Package credential multiplexes calls to a rate-limited provider over a
// pool of API keys that rotates on a timer or on demand.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// DefaultInterval is the minimum time between automatic rotations.
const DefaultInterval = time.Hour

const maxSwapAttempts = 8

// Pool selects credentials from a fixed list of active keys. The rotation
// index and last switch time live in a shared StateStore so that several
// workers, or several processes sharing the store, rotate at most once per
// interval.
type Pool struct {
	provider string
	creds    []Credential
	source   Source
	state    StateStore
	interval time.Duration
	now      func() time.Time
	key      string

	// mu makes read-rotate-select-mark one step within this process.
	mu sync.Mutex
}

type Option func(*Pool)

func WithInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStateKey overrides the state key, "rotation:<provider>" by default.
func WithStateKey(key string) Option {
	return func(p *Pool) {
		if key != "" {
			p.key = key
		}
	}
}

// NewPool loads the active credentials for provider once. It fails with a
// Config error when there are none.
func NewPool(ctx context.Context, source Source, provider string, state StateStore, opts ...Option) (*Pool, error) {
	if source == nil {
		return nil, errs.NewError(errs.ErrConfig, "credential source is nil")
	}
	if state == nil {
		state = NewMemoryStateStore()
	}

	active, err := loadActive(ctx, source, provider)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		provider: provider,
		creds:    active,
		source:   source,
		state:    state,
		interval: DefaultInterval,
		now:      time.Now,
		key:      "rotation:" + provider,
	}
	for _, opt := range opts {
		opt(p)
	}
	log.Info("Credential pool for %q loaded with %d active keys, rotation every %s", provider, len(active), p.interval)
	return p, nil
}

func loadActive(ctx context.Context, source Source, provider string) ([]Credential, error) {
	all, err := source.ListCredentials(ctx, provider)
	if err != nil {
		return nil, errs.WrapError(err, errs.ErrStore, "load credentials")
	}
	active := make([]Credential, 0, len(all))
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil, errs.Errorf(errs.ErrConfig, "no active credential for provider %q", provider)
	}
	return active, nil
}

// Reload re-reads the active credentials, e.g. after a key was added or
// deactivated. The pool keeps its old list when none would remain. The
// stored rotation index is reused modulo the new size.
func (p *Pool) Reload(ctx context.Context) error {
	active, err := loadActive(ctx, p.source, p.provider)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.creds = active
	p.mu.Unlock()
	log.Info("Credential pool for %q reloaded with %d active keys", p.provider, len(active))
	return nil
}

func (p *Pool) Provider() string {
	return p.provider
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Credentials returns a snapshot of the pool in rotation order.
func (p *Pool) Credentials() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Credential(nil), p.creds...)
}

// Current returns the index the next Acquire would use without rotating.
func (p *Pool) Current(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, ok, err := p.state.Get(ctx, p.key)
	if err != nil {
		return 0, errs.WrapError(err, errs.ErrStore, "read rotation state")
	}
	if !ok {
		return 0, nil
	}
	st, err := decodeRotationState(raw)
	if err != nil {
		return 0, nil
	}
	return p.normalize(st.Index), nil
}

// Acquire rotates when the interval has elapsed, then marks the selected
// credential as used and returns it.
func (p *Pool) Acquire(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.advance(ctx, false)
	if err != nil {
		return Credential{}, err
	}
	return p.markUsed(ctx, idx), nil
}

// ForceRotate moves to the next credential regardless of elapsed time and
// then acquires it. Callers use it after the provider reports a rate limit.
func (p *Pool) ForceRotate(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.advance(ctx, true)
	if err != nil {
		return Credential{}, err
	}
	return p.markUsed(ctx, idx), nil
}

// advance applies at most one rotation through compare-and-swap and returns
// the selected index.
func (p *Pool) advance(ctx context.Context, force bool) (int, error) {
	n := len(p.creds)
	for range maxSwapAttempts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		raw, present, err := p.state.Get(ctx, p.key)
		if err != nil {
			return 0, errs.WrapError(err, errs.ErrStore, "read rotation state")
		}

		now := p.now()
		exists := present
		var cur rotationState
		if present {
			if cur, err = decodeRotationState(raw); err != nil {
				log.Warn("Resetting unreadable rotation state for %q: %v", p.provider, err)
				present = false
			}
		}

		var next rotationState
		switch {
		case !present && force:
			next = rotationState{Index: 1 % n, LastSwitch: now}
		case !present:
			next = rotationState{Index: 0, LastSwitch: now}
		case force || now.Sub(cur.LastSwitch) >= p.interval:
			next = rotationState{Index: (p.normalize(cur.Index) + 1) % n, LastSwitch: now}
		default:
			return p.normalize(cur.Index), nil
		}

		old := ""
		if exists {
			old = raw
		}
		swapped, err := p.state.CompareAndSwap(ctx, p.key, old, next.encode())
		if err != nil {
			return 0, errs.WrapError(err, errs.ErrStore, "write rotation state")
		}
		if !swapped {
			// Another process moved the state first; re-read and decide again.
			continue
		}
		if present {
			log.Info("Rotated %q credential to %d/%d (%s)", p.provider, next.Index+1, n, p.creds[next.Index].Masked())
		}
		return next.Index, nil
	}
	return 0, errs.Errorf(errs.ErrStore, "rotation state for %q kept changing", p.provider)
}

func (p *Pool) normalize(idx int) int {
	n := len(p.creds)
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (p *Pool) markUsed(ctx context.Context, idx int) Credential {
	now := p.now()
	p.creds[idx].UsageCount++
	p.creds[idx].LastUsedAt = now
	if err := p.source.MarkCredentialUsed(ctx, p.creds[idx].ID, now); err != nil {
		log.Error("Failed to record usage of credential %s: %v", p.creds[idx].Masked(), err)
	}
	return p.creds[idx]
}

package translator

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// BreakerSettings controls when a provider is considered down.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	OpenTimeout:         time.Minute,
}

type breakerBackend struct {
	name  string
	inner Backend
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker fails fast while a provider keeps failing. Rate limits and
// caller cancellations do not count as failures since another key or a
// later request can still succeed.
func WithBreaker(name string, inner Backend, settings BreakerSettings) Backend {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings.ConsecutiveFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}
	threshold := settings.ConsecutiveFailures
	return &breakerBackend{
		name:  name,
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errs.IsRateLimited(err) ||
					errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Provider %s circuit %s -> %s", name, from, to)
			},
		}),
	}
}

func (b *breakerBackend) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, apiKey, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", errs.WrapError(err, errs.ErrProvider, "provider "+b.name+" is unavailable").
				WithContext("breaker", b.cb.State().String())
		}
		return "", err
	}
	return out.(string), nil
}

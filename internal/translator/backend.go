package translator

import (
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
)

// providerFailure wraps a backend error, flagging it when the provider
// refused the call because of a rate limit.
func providerFailure(provider string, err error, rateLimited bool) error {
	e := errs.WrapError(err, errs.ErrProvider, provider+" request failed").
		WithContext("provider", provider)
	if rateLimited {
		e = e.WithContext(errs.ContextRateLimited, true)
	}
	return e
}

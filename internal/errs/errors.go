// Package errs holds the error taxonomy shared by every pipeline stage.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type ErrorType int

const (
	ErrUnknown ErrorType = iota
	// ErrConfig is fatal at construction time, e.g. no active credential.
	ErrConfig
	// ErrNotFound aborts only the requested operation.
	ErrNotFound
	// ErrAlreadyTranslated is a declined operation, not a fault.
	ErrAlreadyTranslated
	// ErrProvider wraps any failure of the external generation service.
	ErrProvider
	// ErrParse marks malformed service output.
	ErrParse
	ErrValidation
	ErrStore
)

// ContextRateLimited is set on provider errors caused by a rate limit.
const ContextRateLimited = "rate_limited"

type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

// Errorf builds an error of the given type with a formatted message.
func Errorf(errorType ErrorType, format string, args ...any) *Error {
	return NewError(errorType, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrConfig:
		return "Config"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyTranslated:
		return "AlreadyTranslated"
	case ErrProvider:
		return "Provider"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrStore:
		return "Store"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// TypeOf returns the type of the outermost *Error in the chain, or ErrUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrUnknown
}

// IsRateLimited reports whether err is a provider error raised by a rate limit.
func IsRateLimited(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Type != ErrProvider {
		return false
	}
	limited, _ := e.Context[ContextRateLimited].(bool)
	return limited
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *Error) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	log.Error("Error Detail: %v\n advice: %s", err, h.GetAdvice(e))
	return true
}

// GetAdvice returns operator-facing advice for an error type.
func (h *DefaultErrorHandler) GetAdvice(err *Error) string {
	switch err.Type {
	case ErrConfig:
		return "Check LLM_PROVIDER and make sure at least one active credential exists for it"
	case ErrNotFound:
		return "Check the corpus, chapter or segment id"
	case ErrAlreadyTranslated:
		return "Re-run with override enabled to replace the existing translation"
	case ErrProvider:
		if IsRateLimited(err) {
			return "The provider is rate limiting this key; rotate credentials and retry"
		}
		return "Check the provider status, API key and network connectivity"
	case ErrParse:
		return "The provider returned output in an unexpected format; inspect the raw response"
	case ErrValidation:
		return "Check the request parameters"
	case ErrStore:
		return "Check the database file permissions and free disk space"
	default:
		return "Review the detailed error information"
	}
}

// Package translator is the client side of the external generation service:
// it builds prompts for translate, review, glossary extraction and residue
// fixing, sends them through the backend matching the credential's provider
// and parses the replies.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

const defaultTimeout = 5 * time.Minute

type Service struct {
	backends map[string]Backend
	models   func() Models
	target   func() language.Tag
	timeout  time.Duration
}

type Option func(*Service)

// WithModels makes the service read model names on every call.
func WithModels(models func() Models) Option {
	return func(s *Service) {
		if models != nil {
			s.models = models
		}
	}
}

func WithTargetLanguage(target func() language.Tag) Option {
	return func(s *Service) {
		if target != nil {
			s.target = target
		}
	}
}

// WithTimeout bounds every single call. Non-positive keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService maps provider tags to backends.
func NewService(backends map[string]Backend, opts ...Option) *Service {
	s := &Service{
		backends: backends,
		models:   func() Models { return DefaultModels },
		target:   func() language.Tag { return language.Vietnamese },
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) languages(source string) (string, string) {
	target := s.target().String()
	return languageName(source, "the source language"), languageName(target, target)
}

func (s *Service) generate(ctx context.Context, cred credential.Credential, op string, req GenerateRequest) (string, error) {
	backend, ok := s.backends[cred.Provider]
	if !ok {
		return "", errs.Errorf(errs.ErrConfig, "no backend for provider %q", cred.Provider)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := backend.Generate(ctx, cred.Secret, req)
	if err != nil {
		log.Error("%s via %s (%s, model %s) failed after %s: %v", op, cred.Provider, cred.Masked(), req.Model, time.Since(start).Round(time.Millisecond), err)
		return "", asProviderError(err, op)
	}
	log.Debug("%s via %s (%s, model %s) took %s", op, cred.Provider, cred.Masked(), req.Model, time.Since(start).Round(time.Millisecond))
	return text, nil
}

// asProviderError keeps typed errors from backends and wraps anything else.
func asProviderError(err error, op string) error {
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	return errs.WrapError(err, errs.ErrProvider, op+" call failed")
}

// Translate returns the title candidate and content translation of req.Source.
func (s *Service) Translate(ctx context.Context, cred credential.Credential, req TranslateRequest) (TranslateResult, error) {
	sourceLang, targetLang := s.languages(req.SourceLanguage)
	system, prompt := buildTranslatePrompt(req, sourceLang, targetLang)

	text, err := s.generate(ctx, cred, "translate", GenerateRequest{
		Model:       s.models().Translate,
		System:      system,
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return TranslateResult{}, err
	}

	result, tagged := ParseTranslation(text)
	if !tagged {
		log.Warn("Translate reply had no title/content tags, using the whole reply as content")
	}
	if strings.TrimSpace(result.Content) == "" {
		return TranslateResult{}, errs.NewError(errs.ErrProvider, "translate returned empty content")
	}
	return result, nil
}

// Review scores a translation against its source.
func (s *Service) Review(ctx context.Context, cred credential.Credential, source, translated, sourceLanguage string) (ReviewResult, error) {
	sourceLang, targetLang := s.languages(sourceLanguage)
	system, prompt := buildReviewPrompt(source, translated, sourceLang, targetLang)

	text, err := s.generate(ctx, cred, "review", GenerateRequest{
		Model:       s.models().Review,
		System:      system,
		Prompt:      prompt,
		Temperature: 0.2,
	})
	if err != nil {
		return ReviewResult{}, err
	}
	return ParseReview(text), nil
}

// ExtractGlossary returns the raw "source = target" lines for batchText.
func (s *Service) ExtractGlossary(ctx context.Context, cred credential.Credential, batchText, existing, sourceLanguage string) (string, error) {
	if strings.TrimSpace(batchText) == "" {
		return "", nil
	}
	sourceLang, targetLang := s.languages(sourceLanguage)
	system, prompt := buildExtractPrompt(batchText, existing, sourceLang, targetLang)

	text, err := s.generate(ctx, cred, "extract glossary", GenerateRequest{
		Model:       s.models().Extract,
		System:      system,
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Fix rewrites a translation that still carries foreign script. A reply
// without tags is a Parse error and the caller keeps the current text.
func (s *Service) Fix(ctx context.Context, cred credential.Credential, req FixRequest) (TranslateResult, error) {
	sourceLang, targetLang := s.languages(req.SourceLanguage)
	system, prompt := buildFixPrompt(req, sourceLang, targetLang)

	text, err := s.generate(ctx, cred, "fix", GenerateRequest{
		Model:       s.models().Fix,
		System:      system,
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return TranslateResult{}, err
	}

	result, tagged := ParseTranslation(text)
	if !tagged {
		return TranslateResult{}, errs.NewError(errs.ErrParse, fmt.Sprintf("fix reply missing %s/%s tags", titleTag, contentTag))
	}
	return result, nil
}

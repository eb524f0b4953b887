package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-novel-translator/internal/config"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
	"github.com/MimeLyc/contextual-novel-translator/internal/llm"
	"github.com/MimeLyc/contextual-novel-translator/internal/persistence"
	"github.com/MimeLyc/contextual-novel-translator/internal/service"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	settings *config.RuntimeSettingsStore
	store    *persistence.SQLiteStore
	gen      *translator.Service
}

func newApp() (*app, error) {
	var opts []config.Option
	settingsPath := config.RuntimeSettingsFilePath()
	if saved, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(saved))
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Ignoring runtime settings %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	settings, err := config.NewRuntimeSettingsStore(cfg.System.SettingsFile, cfg.RuntimeSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to init runtime settings: %w", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.System.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{cfg: cfg, settings: settings, store: store}
	backends, err := a.backends()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.gen = translator.NewService(backends,
		translator.WithModels(a.models),
		translator.WithTargetLanguage(a.target),
		translator.WithTimeout(cfg.LLM.Timeout),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// models reads the runtime settings on every call so edits apply at once.
func (a *app) models() translator.Models {
	s := a.settings.GetRuntimeSettings()
	return translator.Models{
		Translate: s.TranslateModel,
		Review:    s.ReviewModel,
		Fix:       s.FixModel,
		Extract:   s.TranslateModel,
	}
}

func (a *app) target() language.Tag {
	return a.settings.GetRuntimeSettings().Target()
}

func (a *app) backends() (map[string]translator.Backend, error) {
	llmCfg := a.cfg.LLM
	client, err := llm.NewClient(&llm.Config{
		APIURL:      llmCfg.APIURL,
		Model:       llmCfg.TranslateModel,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: 0.3,
		Timeout:     int(llmCfg.Timeout.Seconds()),
		AppName:     "contextual-novel-translator",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	raw := map[string]translator.Backend{
		translator.ProviderGemini:     translator.NewGeminiBackend("", llmCfg.MaxTokens),
		translator.ProviderOpenAI:     translator.NewOpenAIBackend(llmCfg.APIURL, llmCfg.MaxTokens),
		translator.ProviderOpenRouter: translator.NewCompatibleBackend(client),
	}
	out := make(map[string]translator.Backend, len(raw))
	for name, b := range raw {
		out[name] = translator.WithBreaker(name, b, translator.DefaultBreakerSettings)
	}
	return out, nil
}

// pool seeds LLM_API_KEYS into the store and opens the rotation pool. Keys
// already stored keep their active flag.
func (a *app) pool(ctx context.Context) (*credential.Pool, error) {
	for i, key := range a.cfg.LLM.APIKeys {
		created, err := a.store.SeedCredential(ctx, credential.Credential{
			Name:     fmt.Sprintf("env-%d", i+1),
			Secret:   key,
			Provider: a.cfg.LLM.Provider,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed credential %s: %w", credential.Mask(key), err)
		}
		if created {
			log.Info("Seeded credential %s from LLM_API_KEYS", credential.Mask(key))
		}
	}
	return credential.NewPool(ctx, a.store, a.cfg.LLM.Provider, a.store,
		credential.WithInterval(a.cfg.LLM.RotationInterval))
}

func (a *app) orchestrator(pool *credential.Pool) *service.Orchestrator {
	return service.NewOrchestrator(a.store, a.gen, pool,
		service.WithMaxWords(a.cfg.Translate.SegmentMaxWords),
		service.WithContextChapters(a.cfg.Translate.ContextChapters),
		service.WithExcerptChars(a.cfg.Translate.ExcerptChars),
	)
}

func (a *app) planner(pool *credential.Pool) *glossary.Planner {
	return glossary.NewPlanner(a.store, a.gen, pool,
		glossary.WithBatchWords(a.cfg.Glossary.BatchWords),
		glossary.WithCharCap(a.cfg.Glossary.CharCap),
	)
}

// withApp opens the shared components for one command and closes them after.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

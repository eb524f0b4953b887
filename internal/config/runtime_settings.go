package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-novel-translator/pkg/icron"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings are the values that can change without a restart.
type RuntimeSettings struct {
	TranslateModel string `json:"translate_model"`
	ReviewModel    string `json:"review_model"`
	FixModel       string `json:"fix_model"`
	TargetLanguage string `json:"target_language"`
	GlossaryCron   string `json:"glossary_cron"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.TranslateModel) == "" {
		return fmt.Errorf("translate_model is required")
	}
	if strings.TrimSpace(s.ReviewModel) == "" {
		return fmt.Errorf("review_model is required")
	}
	if strings.TrimSpace(s.FixModel) == "" {
		return fmt.Errorf("fix_model is required")
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language: %w", err)
	}
	if s.GlossaryCron != "" {
		if _, err := icron.Parse(s.GlossaryCron); err != nil {
			return fmt.Errorf("invalid glossary_cron: %w", err)
		}
	}
	return nil
}

// Target returns the parsed target language, und when invalid.
func (s RuntimeSettings) Target() language.Tag {
	tag, err := language.Parse(s.TargetLanguage)
	if err != nil {
		return language.Und
	}
	return tag
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		TranslateModel: c.LLM.TranslateModel,
		ReviewModel:    c.LLM.ReviewModel,
		FixModel:       c.LLM.FixModel,
		TargetLanguage: c.Translate.TargetLanguage.String(),
		GlossaryCron:   c.Glossary.CronExpr,
	}
}

// WithRuntimeSettings overrides the config with the non-empty settings.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.TranslateModel) != "" {
			c.LLM.TranslateModel = settings.TranslateModel
		}
		if strings.TrimSpace(settings.ReviewModel) != "" {
			c.LLM.ReviewModel = settings.ReviewModel
		}
		if strings.TrimSpace(settings.FixModel) != "" {
			c.LLM.FixModel = settings.FixModel
		}
		if strings.TrimSpace(settings.GlossaryCron) != "" {
			c.Glossary.CronExpr = settings.GlossaryCron
		}
		if tag, err := language.Parse(settings.TargetLanguage); err == nil {
			c.Translate.TargetLanguage = tag
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore keeps the current settings in memory and persists
// every accepted update.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() RuntimeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-novel-translator/pkg/icron"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// Config holds all application configuration.
// Values come from environment variables (optionally from a .env file) with
// defaults, then from runtime settings and options.
//
// Environment Variables:
// System:
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - DB_PATH: SQLite database file (default: /app/data/novels.db)
// - HTTP_ADDR: API listen address (default: :8080)
// - SETTINGS_FILE: runtime settings JSON (default: /app/config/settings.json)
// - JOB_WORKERS: job queue workers (default: 2)
//
// LLM:
// - LLM_PROVIDER: gemini, openai or openrouter (default: gemini)
// - LLM_API_KEYS: comma-separated keys added to the credential pool at startup
// - LLM_API_URL: base URL for openai and openrouter (default: https://openrouter.ai/api/v1)
// - LLM_TRANSLATE_MODEL, LLM_REVIEW_MODEL, LLM_FIX_MODEL: model per operation
// - LLM_TIMEOUT: per-call timeout in seconds (default: 300)
// - LLM_MAX_TOKENS: response cap (default: 8000)
// - ROTATION_INTERVAL: seconds between automatic key switches (default: 3600)
//
// Pipeline:
// - SEGMENT_MAX_WORDS (default: 3000)
// - GLOSSARY_BATCH_WORDS (default: 20000)
// - GLOSSARY_CHAR_CAP (default: 75000)
// - GLOSSARY_CRON: scheduled glossary refresh, empty disables (default: "")
// - CONTEXT_CHAPTERS (default: 2)
// - CONTEXT_EXCERPT_CHARS (default: 1500)
// - TARGET_LANGUAGE: BCP 47 tag (default: vi)
type Config struct {
	System    SystemConfig    `json:"system"`
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Glossary  GlossaryConfig  `json:"glossary"`
}

type SystemConfig struct {
	LogLevel     string `json:"log_level"`
	DBPath       string `json:"db_path"`
	HTTPAddr     string `json:"http_addr"`
	SettingsFile string `json:"settings_file"`
	JobWorkers   int    `json:"job_workers"`
}

type LLMConfig struct {
	Provider         string        `json:"provider"`
	APIKeys          []string      `json:"-"`
	APIURL           string        `json:"api_url"`
	TranslateModel   string        `json:"translate_model"`
	ReviewModel      string        `json:"review_model"`
	FixModel         string        `json:"fix_model"`
	Timeout          time.Duration `json:"timeout"`
	MaxTokens        int           `json:"max_tokens"`
	RotationInterval time.Duration `json:"rotation_interval"`
}

type TranslateConfig struct {
	TargetLanguage  language.Tag `json:"target_language"`
	SegmentMaxWords int          `json:"segment_max_words"`
	ContextChapters int          `json:"context_chapters"`
	ExcerptChars    int          `json:"excerpt_chars"`
}

type GlossaryConfig struct {
	BatchWords int    `json:"batch_words"`
	CharCap    int    `json:"char_cap"`
	CronExpr   string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadDotEnv loads a .env file into the environment. A missing file is not
// an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	target, err := language.Parse(getEnvString("TARGET_LANGUAGE", "vi"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		System: SystemConfig{
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
			DBPath:       getEnvString("DB_PATH", "/app/data/novels.db"),
			HTTPAddr:     getEnvString("HTTP_ADDR", ":8080"),
			SettingsFile: RuntimeSettingsFilePath(),
			JobWorkers:   getEnvInt("JOB_WORKERS", 2),
		},
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnvString("LLM_PROVIDER", "gemini")),
			APIKeys:          getEnvList("LLM_API_KEYS"),
			APIURL:           getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			TranslateModel:   getEnvString("LLM_TRANSLATE_MODEL", "gemini-2.5-pro"),
			ReviewModel:      getEnvString("LLM_REVIEW_MODEL", "gemini-2.5-flash"),
			FixModel:         getEnvString("LLM_FIX_MODEL", "gemini-2.0-flash"),
			Timeout:          getEnvSeconds("LLM_TIMEOUT", 300),
			MaxTokens:        getEnvInt("LLM_MAX_TOKENS", 8000),
			RotationInterval: getEnvSeconds("ROTATION_INTERVAL", 3600),
		},
		Translate: TranslateConfig{
			TargetLanguage:  target,
			SegmentMaxWords: getEnvInt("SEGMENT_MAX_WORDS", 3000),
			ContextChapters: getEnvInt("CONTEXT_CHAPTERS", 2),
			ExcerptChars:    getEnvInt("CONTEXT_EXCERPT_CHARS", 1500),
		},
		Glossary: GlossaryConfig{
			BatchWords: getEnvInt("GLOSSARY_BATCH_WORDS", 20000),
			CharCap:    getEnvInt("GLOSSARY_CHAR_CAP", 75000),
			CronExpr:   getEnvString("GLOSSARY_CRON", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	log.Info("Config: provider=%s keys=%d db=%s target=%s segment=%d batch=%d",
		config.LLM.Provider, len(config.LLM.APIKeys), config.System.DBPath,
		config.Translate.TargetLanguage, config.Translate.SegmentMaxWords, config.Glossary.BatchWords)

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai", "openrouter":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if strings.TrimSpace(c.System.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	positive := map[string]int{
		"SEGMENT_MAX_WORDS":     c.Translate.SegmentMaxWords,
		"GLOSSARY_BATCH_WORDS":  c.Glossary.BatchWords,
		"GLOSSARY_CHAR_CAP":     c.Glossary.CharCap,
		"CONTEXT_EXCERPT_CHARS": c.Translate.ExcerptChars,
		"LLM_MAX_TOKENS":        c.LLM.MaxTokens,
		"JOB_WORKERS":           c.System.JobWorkers,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.Translate.ContextChapters < 0 {
		return fmt.Errorf("CONTEXT_CHAPTERS must not be negative")
	}
	if c.LLM.RotationInterval <= 0 {
		return fmt.Errorf("ROTATION_INTERVAL must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.Translate.TargetLanguage == language.Und {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if c.Glossary.CronExpr != "" {
		if _, err := icron.Parse(c.Glossary.CronExpr); err != nil {
			return fmt.Errorf("invalid GLOSSARY_CRON: %w", err)
		}
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

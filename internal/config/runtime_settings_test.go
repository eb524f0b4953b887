package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		TranslateModel: "gemini-2.5-pro",
		ReviewModel:    "gemini-2.5-flash",
		FixModel:       "gemini-2.0-flash",
		TargetLanguage: "vi",
		GlossaryCron:   "*/5 * * * *",
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	valid := validSettings()
	require.NoError(t, valid.Validate())

	noCron := valid
	noCron.GlossaryCron = ""
	require.NoError(t, noCron.Validate())

	invalid := valid
	invalid.GlossaryCron = "bad cron"
	require.Error(t, invalid.Validate())

	invalidLang := valid
	invalidLang.TargetLanguage = ""
	require.Error(t, invalidLang.Validate())

	noModel := valid
	noModel.ReviewModel = " "
	require.Error(t, noModel.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "settings", "runtime.json")
	input := validSettings()

	require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, input, got)
	assert.Equal(t, "vi", got.Target().String())

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("LLM_TRANSLATE_MODEL", "env-model")
	t.Setenv("GLOSSARY_CRON", "0 1 * * *")

	override := RuntimeSettings{
		TranslateModel: "file-model",
		ReviewModel:    "file-review",
		FixModel:       "file-fix",
		TargetLanguage: "ja",
		GlossaryCron:   "*/30 * * * *",
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)
	assert.Equal(t, "file-model", cfg.LLM.TranslateModel)
	assert.Equal(t, "file-review", cfg.LLM.ReviewModel)
	assert.Equal(t, "file-fix", cfg.LLM.FixModel)
	assert.Equal(t, override.GlossaryCron, cfg.Glossary.CronExpr)
	assert.Equal(t, "ja", cfg.Translate.TargetLanguage.String())
	assert.Equal(t, override, cfg.RuntimeSettings())
}

func TestRuntimeSettingsStore_UpdatePersistsFile(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "runtime-settings.json")

	store, err := NewRuntimeSettingsStore(filePath, validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.TargetLanguage = "en"
	next.GlossaryCron = ""
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, next, got)
	assert.Equal(t, next, store.GetRuntimeSettings())

	loaded, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)

	bad := next
	bad.TargetLanguage = "not a language!"
	_, err = store.UpdateRuntimeSettings(bad)
	require.Error(t, err)
	assert.Equal(t, next, store.GetRuntimeSettings())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_URL", "OPENROUTER_DEBUG", "EFFITIME_DB"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := Load(dir, Path(dir))
	require.NoError(t, err)

	assert.Equal(t, DefaultUser, cfg.User)
	assert.Equal(t, "openai/gpt-5-mini", cfg.Oracle.Model)
	assert.Equal(t, 3, cfg.Oracle.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout.Std())
	assert.Equal(t, 0.2, cfg.Oracle.Temperature)
	assert.Equal(t, 168*time.Hour, cfg.Scheduling.Horizon.Std())
	assert.Equal(t, filepath.Join(dir, "effitime.db"), cfg.Store.Path)
	assert.Empty(t, cfg.Oracle.APIKey)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := `
oracle:
  model: anthropic/some-model
  timeout: 45s
scheduling:
  lead_time: 15m
  wake_up: "06:30"
calendar:
  enabled: true
  name: Work
`
	require.NoError(t, os.WriteFile(Path(dir), []byte(yml), 0600))

	cfg, err := Load(dir, Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "anthropic/some-model", cfg.Oracle.Model)
	assert.Equal(t, 45*time.Second, cfg.Oracle.Timeout.Std())
	assert.Equal(t, 15*time.Minute, cfg.Scheduling.LeadTime.Std())
	assert.Equal(t, "06:30", cfg.Scheduling.WakeUp)
	assert.Equal(t, "23:00", cfg.Scheduling.BedTime, "untouched keys keep defaults")
	assert.True(t, cfg.Calendar.Enabled)
	assert.Equal(t, "Work", cfg.Calendar.Name)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"bad duration": "oracle:\n  timeout: soon\n",
		"zero retries": "oracle:\n  max_retries: 0\n",
		"bad clock":    "scheduling:\n  bed_time: \"25:00\"\n",
		"bad yaml":     "oracle: [",
	}
	for name, yml := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(Path(dir), []byte(yml), 0600))
			_, err := Load(dir, Path(dir))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_MODEL", "openai/other")
	t.Setenv("OPENROUTER_URL", "http://127.0.0.1:9/v1/chat/completions")
	t.Setenv("OPENROUTER_DEBUG", "true")
	t.Setenv("EFFITIME_DB", "/tmp/other.db")

	dir := t.TempDir()
	cfg, err := Load(dir, Path(dir))
	require.NoError(t, err)

	oc := cfg.OracleConfig()
	assert.Equal(t, "sk-test", oc.APIKey)
	assert.Equal(t, "openai/other", oc.Model)
	assert.Equal(t, "http://127.0.0.1:9/v1/chat/completions", oc.Endpoint)
	assert.True(t, oc.Debug)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
}

func TestSave_RoundTripWithoutEnvKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-env")
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.Oracle.APIKey = "sk-env"
	cfg.Scheduling.LeadTime = Duration(45 * time.Minute)
	require.NoError(t, Save(Path(dir), cfg))

	b, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sk-env")
	assert.Contains(t, string(b), "lead_time: 45m0s")

	t.Setenv("OPENROUTER_API_KEY", "")
	loaded, err := Load(dir, Path(dir))
	require.NoError(t, err)
	assert.Empty(t, loaded.Oracle.APIKey)
	assert.Equal(t, 45*time.Minute, loaded.Scheduling.LeadTime.Std())
}

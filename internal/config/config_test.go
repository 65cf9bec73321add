package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, 37780, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 15, cfg.Engine.ExtractAfterTurns)
	assert.Equal(t, 30, cfg.Engine.IdleExtractMinutes)
	assert.Equal(t, 24, cfg.Engine.DecayIntervalHours)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorekeep.toml")
	content := `
[server]
port = 9999

[llm]
provider = "openai"
model = "gpt-4o-mini"

[engine]
extract_after_turns = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Engine.ExtractAfterTurns)

	// Keys the file omits keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, 30, cfg.Engine.IdleExtractMinutes)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err, "an explicitly named config file must exist")
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorekeep.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LOREKEEP_LLM_PROVIDER", "anthropic")
	t.Setenv("LOREKEEP_SERVER_PORT", "4242")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 4242, cfg.Server.Port)
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37780", cfg.ListenAddr())

	cfg.Server.Bind = "0.0.0.0"
	cfg.Server.Port = 8080
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all lorekeep configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LLMConfig struct {
	Provider  string `mapstructure:"provider"` // "openai", "anthropic", "ollama"
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"` // for OpenAI-compatible endpoints
	OllamaURL string `mapstructure:"ollama_url"`
}

type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // "openai", "ollama", "local"
	Model    string `mapstructure:"model"`    // e.g. "nomic-embed-text"
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type EngineConfig struct {
	ExtractAfterTurns  int `mapstructure:"extract_after_turns"`  // buffer size that triggers extraction
	IdleExtractMinutes int `mapstructure:"idle_extract_minutes"` // inactivity sweep threshold
	DecayIntervalHours int `mapstructure:"decay_interval_hours"` // decay scheduler period
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2",
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Model:    "nomic-embed-text",
		},
		Engine: EngineConfig{
			ExtractAfterTurns:  15,
			IdleExtractMinutes: 30,
			DecayIntervalHours: 24,
		},
	}
}

// Load reads configuration from file and environment. The file is optional;
// a missing config file falls back to defaults. Environment variables use
// the LOREKEEP_ prefix with underscores, e.g. LOREKEEP_LLM_API_KEY.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("server.bind", def.Server.Bind)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("embedding.provider", def.Embedding.Provider)
	v.SetDefault("embedding.model", def.Embedding.Model)
	v.SetDefault("engine.extract_after_turns", def.Engine.ExtractAfterTurns)
	v.SetDefault("engine.idle_extract_minutes", def.Engine.IdleExtractMinutes)
	v.SetDefault("engine.decay_interval_hours", def.Engine.DecayIntervalHours)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lorekeep")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lorekeep")
	}

	v.SetEnvPrefix("LOREKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

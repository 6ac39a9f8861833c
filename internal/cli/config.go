package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/brunobiangulo/docai"
	"github.com/brunobiangulo/docai/internal/server"
)

// EnvPrefix prefixes every environment override, e.g. DOCAI_CHAT_MODEL.
const EnvPrefix = "DOCAI"

// fileConfig is the on-disk layout: the engine config inline plus the
// settings only the command line surfaces use.
type fileConfig struct {
	docai.Config `mapstructure:",squash"`

	Server server.Config `mapstructure:"server"`
	Log    logConfig     `mapstructure:"log"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// loadConfig reads path (optional) and DOCAI_* variables over the defaults.
func loadConfig(path string) (*fileConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName("docai")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it through
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := docai.DefaultConfig()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("db_name", d.DBName)
	v.SetDefault("storage_dir", d.StorageDir)
	v.SetDefault("source_dir", d.SourceDir)
	setLLMDefaults(v, "chat", d.Chat)
	setLLMDefaults(v, "embedding", d.Embedding)
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("embedding_dim", d.EmbeddingDim)
	v.SetDefault("max_section_chars", d.MaxSectionChars)
	v.SetDefault("system_prompt", d.SystemPrompt)

	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.cors_origins", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func setLLMDefaults(v *viper.Viper, key string, c docai.LLMConfig) {
	v.SetDefault(key+".provider", c.Provider)
	v.SetDefault(key+".model", c.Model)
	v.SetDefault(key+".base_url", c.BaseURL)
	v.SetDefault(key+".api_key", c.APIKey)
	v.SetDefault(key+".max_retries", c.MaxRetries)
}

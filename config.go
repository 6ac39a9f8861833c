package docai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds all configuration for the docai engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, it is derived from DBName and StorageDir.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// DBName is the database name used when DBPath is empty.
	// Defaults to "documentation", giving documentation.sqlite.
	DBName string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not set. "local" (default) uses the working directory,
	// "home" uses ~/.docai/.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// SourceDir is the folder scanned by ReloadAll.
	SourceDir string `json:"source_dir" yaml:"source_dir" mapstructure:"source_dir"`

	Chat      LLMConfig `json:"chat" yaml:"chat" mapstructure:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`

	// Retrieval
	MaxResults          int     `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	EmbeddingDim        int     `json:"embedding_dim" yaml:"embedding_dim" mapstructure:"embedding_dim"`

	// MaxSectionChars splits oversized paragraphs into fixed-size sections.
	// 0 disables it.
	MaxSectionChars int `json:"max_section_chars" yaml:"max_section_chars" mapstructure:"max_section_chars"`

	// SystemPrompt overrides the instruction sent to the chat model.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider   string `json:"provider" yaml:"provider" mapstructure:"provider"` // ollama, lmstudio, openai, groq, openrouter, xai, gemini, custom
	Model      string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL    string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey     string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// Enabled reports whether a provider is configured.
func (c LLMConfig) Enabled() bool {
	return c.Provider != ""
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// The database is documentation.sqlite in the working directory and
// embeddings are disabled, so retrieval is lexical until a provider is set.
func DefaultConfig() Config {
	return Config{
		DBName:     "documentation",
		StorageDir: "local",
		SourceDir:  "documentation",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "mistral",
			BaseURL:  "http://localhost:11434",
		},
		MaxResults:          5,
		SimilarityThreshold: 0.3,
		EmbeddingDim:        384,
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("%w: max_results must be >= 0, got %d", ErrInvalidConfig, c.MaxResults)
	}
	if c.EmbeddingDim < 0 {
		return fmt.Errorf("%w: embedding_dim must be >= 0, got %d", ErrInvalidConfig, c.EmbeddingDim)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0, 1), got %g", ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.MaxSectionChars < 0 {
		return fmt.Errorf("%w: max_section_chars must be >= 0, got %d", ErrInvalidConfig, c.MaxSectionChars)
	}
	switch strings.ToLower(c.StorageDir) {
	case "", "local", "cwd", "home":
	default:
		return fmt.Errorf("%w: unknown storage_dir %q", ErrInvalidConfig, c.StorageDir)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "documentation"
	}

	switch strings.ToLower(c.StorageDir) {
	case "home":
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".sqlite" // fallback to cwd
		}
		return filepath.Join(home, ".docai", name+".sqlite")
	default: // "local", "cwd" or empty
		return name + ".sqlite"
	}
}

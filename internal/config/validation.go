package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and credentials
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: %s, %s, %s",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama, ProviderOpenAI)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 2. Role catalog. The access package re-validates on construction;
	// this catches configuration mistakes with a clearer message.
	if len(c.Roles) == 0 {
		return fmt.Errorf("%w: at least one role is required", ErrInvalidRoles)
	}
	for name, level := range c.Roles {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty role name", ErrInvalidRoles)
		}
		if level < 0 {
			return fmt.Errorf("%w: role %q has negative level %d", ErrInvalidRoles, name, level)
		}
	}
	if c.DefaultAccessTag == "" {
		return fmt.Errorf("%w: default_access_tag cannot be empty", ErrInvalidDefaultTag)
	}
	if !c.tagResolves(c.DefaultAccessTag) {
		return fmt.Errorf("%w: %q is neither a role nor the public alias",
			ErrInvalidDefaultTag, c.DefaultAccessTag)
	}

	// 3. Chunking
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	// 4. Retrieval
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}

	// 5. PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "helpdesk_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated and MITM
	// vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 6. SQLite
	if c.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite_path cannot be empty", ErrInvalidSQLitePath)
	}

	return nil
}

// tagResolves reports whether tag names a role or the public alias,
// case-insensitively.
func (c *Config) tagResolves(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == strings.ToLower(c.PublicAlias) && c.PublicAlias != "" {
		return true
	}
	for name := range c.Roles {
		if strings.ToLower(name) == tag {
			return true
		}
	}
	return false
}

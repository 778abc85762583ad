// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.helpdesk/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model
//   - Access: role catalog, public alias, default document tag
//   - Ingestion: docs directory, extensions, chunking
//   - Retrieval and answering: top-k, refusal phrases, reasoning tags
//   - Storage: PostgreSQL (vector index) and SQLite (tickets, feedback)
//   - Tickets: team keyword map
//
// Sensitive values (the PostgreSQL password) are masked in MarshalJSON.
// Validation lives in validation.go and uses sentinel errors so callers
// can branch with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRoles indicates the role catalog is malformed.
	ErrInvalidRoles = errors.New("invalid roles")

	// ErrInvalidDefaultTag indicates the default document tag does not
	// resolve against the role catalog.
	ErrInvalidDefaultTag = errors.New("invalid default access tag")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidSQLitePath indicates the support database path is empty.
	ErrInvalidSQLitePath = errors.New("invalid sqlite path")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel outputs 3072 dimensions by default but
	// supports truncation to the 768 our pgvector schema stores.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultTag is applied to documents whose filename carries no
	// recognized role suffix. A deliberate product decision: untagged
	// internal documents are staff material, neither public nor
	// restricted.
	DefaultTag = "staff"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// sensitive fields, update that method.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Access control
	Roles            map[string]int `mapstructure:"roles" json:"roles"`
	PublicAlias      string         `mapstructure:"public_alias" json:"public_alias"`
	DefaultAccessTag string         `mapstructure:"default_access_tag" json:"default_access_tag"`

	// Ingestion
	DocsDir           string   `mapstructure:"docs_dir" json:"docs_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" json:"allowed_extensions"`
	ChunkSize         int      `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int      `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval and answering
	TopK           int      `mapstructure:"top_k" json:"top_k"`
	RefusalReply   string   `mapstructure:"refusal_reply" json:"refusal_reply"`
	RefusalPhrases []string `mapstructure:"refusal_phrases" json:"refusal_phrases"`
	ReasoningOpen  string   `mapstructure:"reasoning_open" json:"reasoning_open"`
	ReasoningClose string   `mapstructure:"reasoning_close" json:"reasoning_close"`

	// PostgreSQL (vector index)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// SQLite (tickets and feedback)
	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`

	// Ticket routing: team key to keyword list. Empty selects the
	// built-in map in the ticket package.
	TicketTeams map[string][]string `mapstructure:"ticket_teams" json:"ticket_teams"`

	// HTTP server
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".helpdesk")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Access control defaults. "public" is an alias for the customer
	// level, not a separate rank.
	viper.SetDefault("roles", map[string]int{
		"customer": 0,
		"staff":    1,
		"hr":       2,
		"manager":  3,
	})
	viper.SetDefault("public_alias", "public")
	viper.SetDefault("default_access_tag", DefaultTag)

	// Ingestion defaults
	viper.SetDefault("docs_dir", "docs")
	viper.SetDefault("allowed_extensions", []string{".txt", ".md"})
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)

	// Retrieval defaults. Refusal phrasing and reasoning delimiters
	// default to empty: the answer package fills its own defaults.
	viper.SetDefault("top_k", 5)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "helpdesk")
	viper.SetDefault("postgres_password", "helpdesk_dev_password")
	viper.SetDefault("postgres_db_name", "helpdesk")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// SQLite defaults
	viper.SetDefault("sqlite_path", "data/support.db")

	// HTTP defaults
	viper.SetDefault("http_addr", "localhost:8080")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "HELPDESK_PROVIDER")
	mustBind("model_name", "HELPDESK_MODEL_NAME")
	mustBind("embedder_model", "HELPDESK_EMBEDDER_MODEL")
	mustBind("ollama_host", "HELPDESK_OLLAMA_HOST")
	mustBind("docs_dir", "HELPDESK_DOCS_DIR")
	mustBind("sqlite_path", "HELPDESK_SQLITE_PATH")
	mustBind("http_addr", "HELPDESK_HTTP_ADDR")

	// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the
	// Genkit plugins, not via Viper. Validate() checks their presence
	// for the selected provider.
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against real password characters.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer ones show the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/deepseek-r1:1.5b".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

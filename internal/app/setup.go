package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ai4ai/helpdesk/db"
	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/config"
	"github.com/ai4ai/helpdesk/internal/database"
	"github.com/ai4ai/helpdesk/internal/feedback"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/retrieve"
	"github.com/ai4ai/helpdesk/internal/ticket"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	catalog, err := access.NewCatalog(cfg.Roles, cfg.PublicAlias)
	if err != nil {
		return nil, fmt.Errorf("building role catalog: %w", err)
	}
	a.Catalog = catalog

	tagger, err := ingest.NewTagger(catalog, cfg.DefaultAccessTag)
	if err != nil {
		return nil, fmt.Errorf("creating tagger: %w", err)
	}
	a.Loader = ingest.NewLoader(tagger, cfg.AllowedExtensions, logger)

	chunker, err := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	a.Chunker = chunker

	a.Store = index.NewPGStore(pool)
	a.Handle = provideHandle(ctx, a.Store, logger)

	retriever := retrieve.New(embedder, a.Handle, cfg.TopK, logger)
	generator := answer.NewGenkitGenerator(g, cfg.FullModelName(), answer.DefaultRetryConfig(), logger)
	synth := answer.NewSynthesizer(catalog, retriever, generator, answer.Config{
		RefusalReply:   cfg.RefusalReply,
		RefusalPhrases: cfg.RefusalPhrases,
		ReasoningOpen:  cfg.ReasoningOpen,
		ReasoningClose: cfg.ReasoningClose,
	}, logger)
	a.Factory = answer.NewFactory(synth, a.Handle, logger)

	supportDB, err := provideSupportDB(cfg)
	if err != nil {
		return nil, err
	}
	a.SupportDB = supportDB
	a.Tickets = ticket.NewStore(supportDB)
	a.Feedback = feedback.NewStore(supportDB)
	a.Router = ticket.NewRouter(cfg.TicketTeams)

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		// Register embedder for retrieval
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates the PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideHandle opens any previously persisted index into a fresh handle.
// A missing index is informational, not fatal: the service starts and
// answers report it until an ingestion runs.
func provideHandle(ctx context.Context, store index.Querier, logger *slog.Logger) *index.Handle {
	handle := index.NewHandle(nil)
	ix, err := index.Open(ctx, store, logger)
	switch {
	case err == nil:
		handle.Swap(ix)
	case errors.Is(err, index.ErrNotFound):
		logger.Info("no persisted index found, run ingest to build one")
	default:
		logger.Warn("opening persisted index", "error", err)
	}
	return handle
}

// provideSupportDB opens the sqlite database holding tickets and feedback.
func provideSupportDB(cfg *config.Config) (*sql.DB, error) {
	supportDB, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening support database: %w", err)
	}
	if err := database.Migrate(supportDB); err != nil {
		_ = supportDB.Close()
		return nil, fmt.Errorf("migrating support database: %w", err)
	}
	return supportDB, nil
}

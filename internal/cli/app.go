package cli

import (
	"context"
	"fmt"

	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/config"
	"gwi.com/docqa/internal/core"
	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
)

// App holds the shared components every command builds sessions from.
type App struct {
	Config  config.Config
	Loader  *core.FileLoader
	Manager *core.Manager

	backend store.Backend
	closers []func()
}

// NewApp wires the model provider, the vector store backend and the session manager.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Loader: core.NewFileLoader()}

	var (
		embedder  core.Embedder
		generator core.Generator
		chatModel = cfg.ChatModel
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		svc, err := core.NewGeminiService(ctx, cfg.APIKey(), cfg.Endpoint(), cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, svc.Close)
		embedder, generator = svc, svc
		if chatModel == "" {
			chatModel = core.DefaultGeminiChatModel
		}
	default:
		svc := core.NewOpenAIService(cfg.APIKey(), cfg.Endpoint(), cfg.EmbeddingModel)
		embedder, generator = svc, svc
		if chatModel == "" {
			chatModel = core.DefaultOpenAIChatModel
		}
	}

	p := params.New(chatModel)
	if cfg.ParamsFile != "" {
		loaded, err := params.LoadFile(cfg.ParamsFile, p)
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := params.Validate(loaded); err != nil {
			app.Close()
			return nil, fmt.Errorf("invalid parameters in %s: %w", cfg.ParamsFile, err)
		}
		p = loaded
	}

	if cfg.InMemoryStore() {
		app.backend = store.NewMemoryStore()
		log.Info("Using in-memory vector store")
	} else {
		db, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.backend = db
		log.Info("Using SQLite vector store at %s", cfg.DatabaseURL)
	}

	app.Manager = core.NewManager(core.ManagerOptions{
		Backend:        app.backend,
		CollectionName: cfg.CollectionName,
		UploadDir:      cfg.UploadDir,
		Params:         p,
		Loader:         app.Loader,
		Embedder:       embedder,
		Generator:      generator,
		Timeout:        cfg.LLMTimeout,
	})
	log.Info("Provider %s, chat model %s", cfg.Provider, chatModel)
	return app, nil
}

// Close ends every session and releases the backend and provider clients.
func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.CloseAll(context.Background())
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			log.Error("Failed to close vector store: %v", err)
		}
	}
	for _, c := range a.closers {
		c()
	}
}

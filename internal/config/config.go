package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/yaoapp/kun/log"
)

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	GenAIKey      string `env:"GENAI_KEY,required,notEmpty"`
	GenAIEndpoint string `env:"GENAI_ENDPOINT,required,notEmpty"`

	Provider       string        `env:"LLM_PROVIDER" envDefault:"openai"`
	ChatModel      string        `env:"CHAT_MODEL"`
	EmbeddingModel string        `env:"EMBEDDING_MODEL"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"docqa.db"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"store_minilm6v2"`
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	ParamsFile     string `env:"PARAMS_FILE"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogMode       string `env:"LOG_MODE" envDefault:"TEXT"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"LOG_MAX_AGE" envDefault:"28"`
}

var AppConfig Config

// Load reads .env (when present) and the process environment.
// It fails before anything else happens if GENAI_KEY or GENAI_ENDPOINT is missing.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not read .env file: %v", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	switch cfg.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}
	return cfg, nil
}

// LoadConfig populates AppConfig and exits the process if the environment is incomplete.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}
	AppConfig = cfg
}

func (c Config) APIKey() string {
	return c.GenAIKey
}

func (c Config) Endpoint() string {
	return c.GenAIEndpoint
}

// InMemoryStore reports whether DATABASE_URL selects the in-process vector store.
func (c Config) InMemoryStore() bool {
	return c.DatabaseURL == ":memory:"
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadRequiresKeyAndEndpoint(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"missing key": func(t *testing.T) {
			unsetenv(t, "GENAI_KEY")
			t.Setenv("GENAI_ENDPOINT", "https://example.invalid")
		},
		"missing endpoint": func(t *testing.T) {
			t.Setenv("GENAI_KEY", "secret")
			unsetenv(t, "GENAI_ENDPOINT")
		},
		"empty key": func(t *testing.T) {
			t.Setenv("GENAI_KEY", "")
			t.Setenv("GENAI_ENDPOINT", "https://example.invalid")
		},
		"both missing": func(t *testing.T) {
			unsetenv(t, "GENAI_KEY")
			unsetenv(t, "GENAI_ENDPOINT")
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			setup(t)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENAI_KEY", "secret")
	t.Setenv("GENAI_ENDPOINT", "https://example.invalid/v1")
	for _, key := range []string{"LLM_PROVIDER", "HTTP_PORT", "DATABASE_URL", "COLLECTION_NAME", "LLM_TIMEOUT"} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey())
	assert.Equal(t, "https://example.invalid/v1", cfg.Endpoint())
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "store_minilm6v2", cfg.CollectionName)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.False(t, cfg.InMemoryStore())
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("GENAI_KEY", "secret")
	t.Setenv("GENAI_ENDPOINT", "https://example.invalid")
	t.Setenv("LLM_PROVIDER", "watsonx")

	_, err := Load()
	assert.ErrorContains(t, err, "watsonx")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Backend)
	assert.Equal(t, 0.8, cfg.Pipeline.CritiqueThreshold)
	assert.Equal(t, 300, cfg.Pipeline.SummarizeMinWords)
	assert.Equal(t, SkipPolicyTrivial, cfg.Pipeline.CritiqueSkipPolicy)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sage.yaml")
	content := `
llm:
  backend: ollama
pipeline:
  critique_threshold: 0.6
  critique_skip_policy: keyword
retrieval:
  chunk_size: 200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SAGE_RETRIEVAL_TOP_K", "3")
	t.Setenv("SAGE_SERVER_PORT", "8088")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, 0.6, cfg.Pipeline.CritiqueThreshold)
	assert.Equal(t, SkipPolicyKeyword, cfg.Pipeline.CritiqueSkipPolicy)
	assert.Equal(t, 200, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("SERP_API_KEY", "s-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "s-key", cfg.Search.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "threshold above one", mutate: func(c *Config) { c.Pipeline.CritiqueThreshold = 1.5 }, wantErr: true},
		{name: "negative threshold", mutate: func(c *Config) { c.Pipeline.CritiqueThreshold = -0.1 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.LLM.Backend = "gpt" }, wantErr: true},
		{name: "unknown skip policy", mutate: func(c *Config) { c.Pipeline.CritiqueSkipPolicy = "never" }, wantErr: true},
		{name: "unknown search provider", mutate: func(c *Config) { c.Search.Provider = "bing" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "pipeline.critique_threshold", envKey("SAGE_PIPELINE_CRITIQUE_THRESHOLD"))
	assert.Equal(t, "server.port", envKey("SAGE_SERVER_PORT"))
	assert.Equal(t, "debug", envKey("SAGE_DEBUG"))
}

// Package config loads sage configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "SAGE_"
	maxConfigFileSize = 1024 * 1024
)

// Skip policies for the critique gate.
const (
	SkipPolicyTrivial = "trivial"
	SkipPolicyKeyword = "keyword"
)

type Config struct {
	LLM       LLMConfig       `koanf:"llm"`
	Search    SearchConfig    `koanf:"search"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Memory    MemoryConfig    `koanf:"memory"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
}

type LLMConfig struct {
	Backend    string `koanf:"backend"`
	Model      string `koanf:"model"`
	OllamaHost string `koanf:"ollama_host"`
	APIKey     string `koanf:"api_key"`
}

type SearchConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Provider   string `koanf:"provider"`
	NumResults int    `koanf:"num_results"`
	Endpoint   string `koanf:"endpoint"`
	APIKey     string `koanf:"api_key"`
}

type PipelineConfig struct {
	CritiqueThreshold  float64 `koanf:"critique_threshold"`
	SummarizeMinWords  int     `koanf:"summarize_min_words"`
	SummaryMaxWords    int     `koanf:"summary_max_words"`
	CritiqueSkipPolicy string  `koanf:"critique_skip_policy"`
}

type RetrievalConfig struct {
	ChunkSize int `koanf:"chunk_size"`
	TopK      int `koanf:"top_k"`
}

type MemoryConfig struct {
	Path string `koanf:"path"`
}

type ServerConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	UploadDir string `koanf:"upload_dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configPath (optional) and overrides it with SAGE_* environment variables.
//
// Precedence, highest first:
//  1. Environment variables (SAGE_PIPELINE_CRITIQUE_THRESHOLD -> pipeline.critique_threshold)
//  2. YAML config file
//  3. Defaults
//
// API keys fall back to GEMINI_API_KEY and SERP_API_KEY when not configured.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SERP_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps SAGE_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = "gemini"
	}
	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "serpapi"
	}
	if cfg.Search.NumResults <= 0 {
		cfg.Search.NumResults = 5
	}
	if cfg.Pipeline.CritiqueThreshold == 0 {
		cfg.Pipeline.CritiqueThreshold = 0.8
	}
	if cfg.Pipeline.SummarizeMinWords <= 0 {
		cfg.Pipeline.SummarizeMinWords = 300
	}
	if cfg.Pipeline.SummaryMaxWords <= 0 {
		cfg.Pipeline.SummaryMaxWords = 500
	}
	if cfg.Pipeline.CritiqueSkipPolicy == "" {
		cfg.Pipeline.CritiqueSkipPolicy = SkipPolicyTrivial
	}
	if cfg.Retrieval.ChunkSize <= 0 {
		cfg.Retrieval.ChunkSize = 500
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "data/memory/task_context.json"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "data/uploaded"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "sage.log"
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("unsupported llm backend: %s", c.LLM.Backend)
	}
	switch c.Search.Provider {
	case "serpapi", "duckduckgo":
	default:
		return fmt.Errorf("unsupported search provider: %s", c.Search.Provider)
	}
	if c.Pipeline.CritiqueThreshold < 0 || c.Pipeline.CritiqueThreshold > 1 {
		return fmt.Errorf("pipeline.critique_threshold must be within [0,1], got %v", c.Pipeline.CritiqueThreshold)
	}
	switch c.Pipeline.CritiqueSkipPolicy {
	case SkipPolicyTrivial, SkipPolicyKeyword:
	default:
		return fmt.Errorf("unsupported critique skip policy: %s", c.Pipeline.CritiqueSkipPolicy)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

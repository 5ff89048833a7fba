package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sage/internal/logger"
)

// Apology is returned in place of generated text when the backend fails.
const Apology = "Sorry, failed to generate a response."

var ErrNotInitialized = errors.New("llm client not initialized")

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
	APIKey     string
}

// Generator is the narrow text-generation capability the pipeline depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// NewProvider selects and initializes the backend named in cfg.
func NewProvider(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
	case "gemini":
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Service adapts a Provider to Generator. Backend failures are logged and
// replaced by Apology so callers always receive text.
type Service struct {
	provider Provider
	model    string
	log      *zap.Logger
}

func NewService(p Provider, model string, log *zap.Logger) *Service {
	return &Service{provider: p, model: model, log: logger.OrNop(log).Named("llm")}
}

func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if s.provider == nil {
		s.log.Error("generate called without provider", zap.Error(ErrNotInitialized))
		return Apology, nil
	}
	text, err := s.provider.Generate(ctx, prompt, s.model)
	if err != nil {
		s.log.Error("generation failed", zap.Error(err))
		return Apology, nil
	}
	return text, nil
}

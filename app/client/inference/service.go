package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"portfolio/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

var ErrEmptyResponse = errors.New("empty model response")

type Service struct {
	provider Provider
	timeout  time.Duration
}

func New(di *do.Injector) (*Service, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	provider, err := NewProvider(ctx, cfg.Inference)
	if err != nil {
		return nil, err
	}

	slog.Info("Inference provider ready",
		"provider", cfg.Inference.Provider,
		"model", cfg.Inference.Model,
	)

	return NewService(provider, cfg.Inference.Timeout), nil
}

func NewService(provider Provider, timeout time.Duration) *Service {
	return &Service{
		provider: provider,
		timeout:  timeout,
	}
}

func NewProvider(ctx context.Context, cfg config.Inference) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "langchain":
		return NewLangchainProvider(cfg)
	default:
		return nil, oops.
			In("inference").
			With("provider", cfg.Provider).
			Errorf("unknown inference provider")
	}
}

// GenerateText issues a single-turn request.
func (s *Service) GenerateText(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return s.Generate(ctx, Request{
		Turns:  []Turn{{Role: RoleUser, Content: prompt}},
		Schema: schema,
	})
}

func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()

	text, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("provider.Complete: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	slog.Debug("Model answered",
		"turns", len(req.Turns),
		"structured", req.Schema != nil,
		"duration", time.Since(start),
	)

	return text, nil
}

// GenerateJSON runs a schema-constrained request and decodes the answer into out.
// Nothing is written into out unless the answer matches the schema.
func (s *Service) GenerateJSON(ctx context.Context, req Request, out any) error {
	if req.Schema == nil {
		return oops.In("inference").Errorf("structured request without schema")
	}

	text, err := s.Generate(ctx, req)
	if err != nil {
		return err
	}

	if err = req.Schema.Decode(text, out); err != nil {
		return oops.
			In("inference").
			With("schema", req.Schema.Name).
			Wrapf(err, "failed to decode structured response")
	}

	return nil
}

// OpenConversation starts a multi-turn exchange under the given system instruction.
func (s *Service) OpenConversation(systemInstruction string) *Conversation {
	return &Conversation{
		svc:    s,
		system: systemInstruction,
	}
}

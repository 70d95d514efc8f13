package inference

import (
	"context"
	"fmt"

	"portfolio/app/config"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider talks to any OpenAI-compatible endpoint through langchaingo.
type LangchainProvider struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewLangchainProvider(cfg config.Inference) (*LangchainProvider, error) {
	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithCallback(LogCallbackHandler{}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai.New: %w", err)
	}

	return &LangchainProvider{
		llm:         llm,
		temperature: float64(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (p *LangchainProvider) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	callOpts := []llms.CallOption{
		llms.WithTemperature(p.temperature),
		llms.WithMaxTokens(p.maxTokens),
	}

	if req.Schema != nil {
		callOpts = append(callOpts, llms.WithJSONMode())
		system += "\n\nRespond only with a JSON document matching this JSON Schema:\n" + string(req.Schema.JSON())
	}

	messages := make([]llms.MessageContent, 0, len(req.Turns)+1)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}

	for _, turn := range req.Turns {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == RoleModel {
			msgType = llms.ChatMessageTypeAI
		}

		messages = append(messages, llms.TextParts(msgType, turn.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("GenerateContent: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Content, nil
}

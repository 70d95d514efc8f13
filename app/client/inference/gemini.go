package inference

import (
	"context"
	"fmt"
	"strings"

	"portfolio/app/config"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGeminiProvider(ctx context.Context, cfg config.Inference) (*GeminiProvider, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.Token,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}

		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	temperature := p.temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: p.maxTokens,
	}

	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if req.Schema != nil {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = toGenaiSchema(req.Schema)
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("GenerateContent: %w", err)
	}

	return res.Text(), nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	result := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		MinItems:    s.MinItems,
		MaxItems:    s.MaxItems,
		Items:       toGenaiSchema(s.Items),
	}

	if len(s.Properties) > 0 {
		result.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			result.Properties[name] = toGenaiSchema(prop)
		}
	}

	return result
}

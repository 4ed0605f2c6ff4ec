package aisvc

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ ai.Generator = (*Gemini)(nil)

func NewGemini(ctx context.Context, conf core.AIConfig) (*Gemini, error) {
	if conf.APIKey == "" {
		return nil, errors.New("an API key is required")
	}
	cc := &genai.ClientConfig{APIKey: conf.APIKey, Backend: genai.BackendGeminiAPI}
	if conf.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: conf.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	model := conf.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return name(ProviderGemini, g.model) }

func (g *Gemini) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   int32(opts.MaxTokens),
		Temperature:       genai.Ptr(float32(opts.Temperature)),
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

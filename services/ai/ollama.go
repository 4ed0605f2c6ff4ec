package aisvc

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
)

const defaultOllamaModel = "llama3.2"

// Ollama generates with a local Ollama server.
type Ollama struct {
	llm   llms.Model
	model string
}

var _ ai.Generator = (*Ollama)(nil)

func NewOllama(conf core.AIConfig) (*Ollama, error) {
	model := conf.Model
	if model == "" {
		model = defaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if conf.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(conf.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Ollama{llm: llm, model: model}, nil
}

func (o *Ollama) Name() string { return name(ProviderOllama, o.model) }

func (o *Ollama) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt,
		llms.WithMaxTokens(opts.MaxTokens),
		llms.WithTemperature(opts.Temperature),
	)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("ollama returned no text")
	}
	return text, nil
}

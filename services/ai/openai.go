package aisvc

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates with the chat completions API of OpenAI, or of any compatible server (see AIConfig.BaseURL).
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ ai.Generator = (*OpenAI)(nil)

func NewOpenAI(conf core.AIConfig) (*OpenAI, error) {
	if conf.APIKey == "" && conf.BaseURL == "" {
		return nil, errors.New("an API key is required")
	}
	cfg := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		cfg.BaseURL = conf.BaseURL
	}
	model := conf.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Name() string { return name(ProviderOpenAI, o.model) }

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

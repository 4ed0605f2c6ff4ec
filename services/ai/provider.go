// Package aisvc connects the text generation providers to core/ai.
package aisvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"

	systemPrompt = "You are an experienced music teacher."
)

var ErrUnknownProvider = errors.New("unknown AI provider")

// New builds the Generator of the configured provider, instrumented with the AI metrics.
func New(ctx context.Context, conf core.AIConfig) (ai.Generator, error) {
	var (
		gen ai.Generator
		err error
	)
	switch strings.ToLower(conf.Provider) {
	case ProviderOpenAI:
		gen, err = NewOpenAI(conf)
	case ProviderOllama:
		gen, err = NewOllama(conf)
	case ProviderGemini:
		gen, err = NewGemini(ctx, conf)
	default:
		return nil, errors.Wrap(ErrUnknownProvider, conf.Provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s generator", conf.Provider)
	}
	return Instrument(gen), nil
}

func name(provider, model string) string {
	return fmt.Sprintf("%s/%s", provider, model)
}

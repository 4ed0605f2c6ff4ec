// Package ai generates lesson plans & quiz questions with a text generation model.
// Generated text is returned as is: it is not parsed into structured lessons or questions.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
)

const (
	KindLessonPlan = "lesson_plan"
	KindQuiz       = "quiz"

	DefaultNumQuestions = 5
	DefaultMaxTokens    = 500
)

// ErrGeneration wraps any failure of the underlying text generator.
var ErrGeneration = errors.New("text generation failed")

type (
	// Options tune a single generation.
	Options struct {
		Kind        string // KindLessonPlan | KindQuiz
		MaxTokens   int
		Temperature float64
	}

	// Generator is a text generation model.
	Generator interface {
		// Name identifies the provider & model, e.g. "openai/gpt-4o-mini".
		Name() string
		Generate(ctx context.Context, prompt string, opts Options) (string, error)
	}

	// Cache stores generated texts.
	Cache interface {
		// Get returns ok=false on a cache miss.
		Get(ctx context.Context, key string) (val string, ok bool, err error)
		Set(ctx context.Context, key, val string, ttl time.Duration) error
	}

	// GeneratorFunc adapts a plain function to a Generator.
	GeneratorFunc func(ctx context.Context, prompt string, opts Options) (string, error)
)

func (f GeneratorFunc) Name() string { return "func" }

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

type LessonPlanRequest struct {
	Instrument string `json:"instrument" validate:"required,max=50"`
	Topic      string `json:"topic" validate:"required,max=200"`
	Level      string `json:"level" validate:"required,max=50"`
}

func (r *LessonPlanRequest) Clean() {
	r.Instrument = core.CleanString(r.Instrument)
	r.Topic = core.CleanString(r.Topic)
	r.Level = core.CleanString(r.Level)
}

func (r LessonPlanRequest) Prompt() string {
	return fmt.Sprintf("Create a %s level lesson plan for %s focusing on %s.", r.Level, r.Instrument, r.Topic)
}

type QuizRequest struct {
	Topic        string `json:"topic" validate:"required,max=200"`
	NumQuestions int    `json:"num_questions" validate:"min=0,max=50"`
}

func (r *QuizRequest) Clean() {
	r.Topic = core.CleanString(r.Topic)
	if r.NumQuestions == 0 {
		r.NumQuestions = DefaultNumQuestions
	}
}

func (r QuizRequest) Prompt() string {
	return fmt.Sprintf("Generate %d multiple-choice questions about %s in music theory.", r.NumQuestions, r.Topic)
}

type (
	ServiceOptions struct {
		MaxTokens   int
		Temperature float64
		Timeout     time.Duration // per generation; 0 means no timeout
		CacheTTL    time.Duration // 0 disables caching
	}

	Service struct {
		gen    Generator
		cache  Cache
		opts   ServiceOptions
		logger core.Logger
	}
)

// NewService returns a Service generating with gen. cache may be nil.
func NewService(gen Generator, cache Cache, logger core.Logger, opts ServiceOptions) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Service{gen: gen, cache: cache, opts: opts, logger: logger}
}

// GenerateLessonPlanContent generates the content of a lesson plan.
func (svc *Service) GenerateLessonPlanContent(ctx context.Context, req LessonPlanRequest) (string, error) {
	req.Clean()
	if err := core.Validate.Struct(req); err != nil {
		return "", err
	}
	return svc.generate(ctx, KindLessonPlan, req.Prompt())
}

// GenerateQuizQuestions generates req.NumQuestions (5 by default) multiple-choice questions.
func (svc *Service) GenerateQuizQuestions(ctx context.Context, req QuizRequest) (string, error) {
	req.Clean()
	if err := core.Validate.Struct(req); err != nil {
		return "", err
	}
	return svc.generate(ctx, KindQuiz, req.Prompt())
}

func (svc *Service) generate(ctx context.Context, kind, prompt string) (string, error) {
	key := svc.cacheKey(prompt)
	if svc.cache != nil && svc.opts.CacheTTL > 0 {
		val, ok, err := svc.cache.Get(ctx, key)
		if err != nil {
			svc.logger.Warn("reading generation cache", errors.Wrap(err, "cache get"))
		} else if ok {
			return val, nil
		}
	}

	genCtx := ctx
	if svc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, svc.opts.Timeout)
		defer cancel()
	}

	text, err := svc.gen.Generate(genCtx, prompt, Options{
		Kind:        kind,
		MaxTokens:   svc.opts.MaxTokens,
		Temperature: svc.opts.Temperature,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating %s with %s", kind, svc.gen.Name()), err)
		return "", errors.Wrap(ErrGeneration, err.Error())
	}

	if svc.cache != nil && svc.opts.CacheTTL > 0 {
		if err = svc.cache.Set(ctx, key, text, svc.opts.CacheTTL); err != nil {
			svc.logger.Warn("writing generation cache", errors.Wrap(err, "cache set"))
		}
	}
	return text, nil
}

func (svc *Service) cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(svc.gen.Name() + "\x00" + prompt))
	return "ai:" + hex.EncodeToString(sum[:])
}

package aisvc

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/muziki/core/ai"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muziki_ai_requests_total",
		Help: "Text generation requests, by provider, kind & status.",
	}, []string{"provider", "kind", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "muziki_ai_request_duration_seconds",
		Help:    "Text generation latency, by provider & kind.",
		Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"provider", "kind"})
)

type instrumented struct {
	ai.Generator
}

// Instrument records the requests of gen in the AI metrics.
func Instrument(gen ai.Generator) ai.Generator {
	return instrumented{Generator: gen}
}

func (i instrumented) Generate(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	provider := i.Name()
	if idx := strings.IndexByte(provider, '/'); idx > 0 {
		provider = provider[:idx]
	}

	start := time.Now()
	text, err := i.Generator.Generate(ctx, prompt, opts)
	requestDuration.WithLabelValues(provider, opts.Kind).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(provider, opts.Kind, status).Inc()
	return text, err
}

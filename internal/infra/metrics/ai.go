package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		promptGenerationsTotal,
		promptGenerationLatencyMs,
	)
}

var (
	promptGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_generations_total",
			Help: "AI prompt generations per provider and result.",
		},
		[]string{"provider", "result"},
	)

	promptGenerationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_generation_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "success"},
	)
)

func ObservePromptGeneration(provider string, latency time.Duration, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	promptGenerationsTotal.WithLabelValues(norm(provider), result).Inc()
	promptGenerationLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latency.Milliseconds()))
}

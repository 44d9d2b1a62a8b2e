package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companiond",
			Subsystem: "manager",
			Name:      "model_loads_total",
			Help:      "Model loads by outcome",
		},
		[]string{"outcome"},
	)

	unloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "companiond",
			Subsystem: "manager",
			Name:      "model_unloads_total",
			Help:      "Model handles released",
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companiond",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Generations by outcome (done, cancelled, failed, rejected, closed)",
		},
		[]string{"outcome"},
	)

	tokensGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "companiond",
			Subsystem: "session",
			Name:      "tokens_generated_total",
			Help:      "Raw tokens produced by the engine",
		},
	)

	promptTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "companiond",
			Subsystem: "session",
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens charged against session budgets",
		},
	)

	budgetRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "companiond",
			Subsystem: "session",
			Name:      "budget_remaining_tokens",
			Help:      "Tokens left in the most recently updated session budget",
		},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "companiond",
			Subsystem: "session",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, generationsTotal, tokensGeneratedTotal,
		promptTokensTotal, budgetRemaining, generationDuration)
}

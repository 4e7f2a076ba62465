package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(offerJobsTotal, pipelineStageMs, policyWarningsTotal) }

var (
	offerJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_jobs_total",
			Help: "Offer jobs by lifecycle event: submitted, completed, failed, duplicate.",
		},
		[]string{"status"},
	)

	pipelineStageMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_ms",
			Help:    "Duration of each pipeline stage in milliseconds.",
			Buckets: []float64{1, 5, 25, 100, 500, 2000, 10000, 30000, 60000},
		},
		[]string{"stage", "success"},
	)

	policyWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_policy_warnings_total",
			Help: "Advisory warnings raised by the policy validator.",
		},
	)
)

func IncOfferJob(status string) {
	offerJobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveStage(stage string, ms int64, success bool) {
	pipelineStageMs.WithLabelValues(norm(stage), strconv.FormatBool(success)).Observe(float64(ms))
}

func AddPolicyWarnings(n int) {
	policyWarningsTotal.Add(float64(n))
}

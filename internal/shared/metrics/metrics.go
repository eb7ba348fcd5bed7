package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "code_analysis"

var (
	analysisStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "started_total",
		Help:      "Total analyses started",
	})
	analysisCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completed_total",
		Help:      "Total analyses completed",
	})
	analysisFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failed_total",
		Help:      "Total analyses failed",
	})
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Wall time of a full pipeline run",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of a single pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2.5, 10),
	}, []string{"stage", "outcome"})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Model requests by kind and outcome",
	}, []string{"kind", "outcome"})
	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_total",
		Help:      "Model tokens by direction",
	}, []string{"direction"})

	archiveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_archive_failures_total",
		Help:      "Report archive writes that failed",
	})

	jobsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_received_total",
		Help:      "Queue messages received by the worker",
	})
	jobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_completed_total",
		Help:      "Queue messages processed and deleted",
	})
	jobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_failed_total",
		Help:      "Queue messages left for redelivery after a processing failure",
	})
	jobsDeletedUnrecoverableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_deleted_unrecoverable_total",
		Help:      "Queue messages deleted because the payload could not be processed",
	})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() { analysisStartedTotal.Inc() }

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() { analysisCompletedTotal.Inc() }

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() { analysisFailedTotal.Inc() }

// ObserveAnalysisDuration records a full pipeline duration.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(d.Seconds())
}

// ObserveStage records a stage duration with its outcome ("ok", "error" or "skipped").
func ObserveStage(stage, outcome string, d time.Duration) {
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// IncLLMRequest counts a model request of the given kind.
func IncLLMRequest(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// AddLLMTokens adds prompt and completion token counts.
func AddLLMTokens(prompt, completion int) {
	if prompt > 0 {
		llmTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	}
	if completion > 0 {
		llmTokensTotal.WithLabelValues("completion").Add(float64(completion))
	}
}

// IncArchiveFailure counts a failed report archive write.
func IncArchiveFailure() { archiveFailuresTotal.Inc() }

// IncAnalysisJobsReceived counts a received queue message.
func IncAnalysisJobsReceived() { jobsReceivedTotal.Inc() }

// IncAnalysisJobsCompleted counts a processed queue message.
func IncAnalysisJobsCompleted() { jobsCompletedTotal.Inc() }

// IncAnalysisJobsFailed counts a queue message left for redelivery.
func IncAnalysisJobsFailed() { jobsFailedTotal.Inc() }

// IncAnalysisJobsDeletedUnrecoverable counts a deleted poison message.
func IncAnalysisJobsDeletedUnrecoverable() { jobsDeletedUnrecoverableTotal.Inc() }

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ingestMetrics holds Prometheus metrics for the ingestion pipeline.
type ingestMetrics struct {
	once sync.Once

	runsStarted     prometheus.Counter
	dryRuns         prometheus.Counter
	quotaRejections prometheus.Counter
	failures        prometheus.Counter

	chunksEmbedded  prometheus.Counter
	chunksSkipped   prometheus.Counter
	batchesUpserted prometheus.Counter
	tokensDebited   prometheus.Counter
}

var metrics ingestMetrics

func (m *ingestMetrics) init() {
	m.once.Do(func() {
		m.runsStarted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_runs_total", Help: "Ingestion runs started"})
		m.dryRuns = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_dry_runs_total", Help: "Dry-run estimates served"})
		m.quotaRejections = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_quota_rejections_total", Help: "Runs rejected for insufficient quota"})
		m.failures = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_failures_total", Help: "Runs aborted by an error"})

		m.chunksEmbedded = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_chunks_embedded_total", Help: "Chunks embedded"})
		m.chunksSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_chunks_skipped_total", Help: "Chunks skipped (empty or oversized)"})
		m.batchesUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_batches_upserted_total", Help: "Vector batches upserted"})
		m.tokensDebited = prometheus.NewCounter(prometheus.CounterOpts{Name: "codesage_ingest_tokens_debited_total", Help: "Normalized tokens debited from quotas"})

		prometheus.MustRegister(
			m.runsStarted, m.dryRuns, m.quotaRejections, m.failures,
			m.chunksEmbedded, m.chunksSkipped, m.batchesUpserted, m.tokensDebited,
		)
	})
}

// record helpers - used by the pipeline for metrics tracking
func recordRunStarted()     { metrics.init(); metrics.runsStarted.Inc() }
func recordDryRun()         { metrics.init(); metrics.dryRuns.Inc() }
func recordQuotaRejection() { metrics.init(); metrics.quotaRejections.Inc() }
func recordFailure()        { metrics.init(); metrics.failures.Inc() }

func recordChunksEmbedded(n int) { metrics.init(); metrics.chunksEmbedded.Add(float64(n)) }
func recordChunksSkipped(n int)  { metrics.init(); metrics.chunksSkipped.Add(float64(n)) }
func recordBatchUpserted()       { metrics.init(); metrics.batchesUpserted.Inc() }
func recordTokensDebited(n int64) {
	metrics.init()
	metrics.tokensDebited.Add(float64(n))
}

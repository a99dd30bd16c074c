package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics aggregates the prometheus collectors for the scheduler and the
// wallet ledger. A single instance is shared process-wide.
type Metrics struct {
	jobRuns      *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	jobSkips     *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	transactions *prometheus.CounterVec
	syncFailures prometheus.Counter
}

var (
	defaultOnce sync.Once
	defaultInst *Metrics
)

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radpanel_scheduler_job_runs_total",
			Help: "Scheduler job executions by job name.",
		}, []string{"job"}),
		jobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radpanel_scheduler_job_errors_total",
			Help: "Scheduler job failures by job name.",
		}, []string{"job"}),
		jobSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radpanel_scheduler_job_skips_total",
			Help: "Scheduler runs skipped because the previous run was still active.",
		}, []string{"job"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radpanel_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time by job name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radpanel_wallet_transactions_total",
			Help: "Ledger transactions written, by transaction kind.",
		}, []string{"kind"}),
		syncFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "radpanel_provisioning_sync_failures_total",
			Help: "Per-item failures while syncing external resource state.",
		}),
	}
}

// Default returns the process-wide metrics registered against the default
// prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInst = New(prometheus.DefaultRegisterer)
	})
	return defaultInst
}

func (m *Metrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobSkip(job string) {
	m.jobSkips.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) IncTransaction(kind string) {
	m.transactions.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncSyncFailure() {
	m.syncFailures.Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(Default),
)

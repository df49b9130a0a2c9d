// Package report collects transaction outcomes (spec.md §4.F) into a
// synchronized sink, exposes them as Prometheus counters/histograms the way
// the teacher's pkg/metrics does for its own protocol counters, and renders
// a per-host recap table via internal/cli/output at the end of a run.
package report

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oddlama/forge/internal/cli/output"
)

// Outcome mirrors the transaction engine's terminal states (spec.md §4.F).
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
	OutcomeFailed    Outcome = "failed"
)

// Record is one completed transaction, as required by spec.md §4.F: host,
// task, title, name, initial/final state, outcome, error, elapsed time.
type Record struct {
	ID           string
	Host         string
	Task         string
	Title        string
	Name         string
	InitialState map[string]any
	FinalState   map[string]any
	Outcome      Outcome
	Err          error
	Elapsed      time.Duration
	StartedAt    time.Time
}

// Sink collects records from every host worker. Per spec.md §5, it is the
// one piece of controller state shared across host workers and must be
// internally synchronized; a sync.Mutex guards the slice, matching the
// teacher's sync.RWMutex-guarded registries elsewhere in the pack.
type Sink struct {
	mu      sync.Mutex
	records []Record
	aborted map[string]bool

	metrics *Metrics
}

// NewSink creates an empty sink. metrics may be nil to skip Prometheus
// instrumentation entirely (e.g. in unit tests).
func NewSink(metrics *Metrics) *Sink {
	return &Sink{metrics: metrics, aborted: make(map[string]bool)}
}

// Record appends rec to the sink and updates Prometheus counters, if any
// are configured. Safe for concurrent use by multiple host workers.
func (s *Sink) Record(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Observe(rec)
	}
}

// Records returns a copy of all records collected so far.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// HostSummary tallies outcomes for one host, used by the recap table.
type HostSummary struct {
	Host      string
	Unchanged int
	Changed   int
	Failed    int
	Aborted   bool
}

// Summaries groups records by host into per-host outcome counts, in the
// order hosts first appear.
func (s *Sink) Summaries() []HostSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0)
	byHost := make(map[string]*HostSummary)
	for _, rec := range s.records {
		sum, ok := byHost[rec.Host]
		if !ok {
			sum = &HostSummary{Host: rec.Host}
			byHost[rec.Host] = sum
			order = append(order, rec.Host)
		}
		switch rec.Outcome {
		case OutcomeUnchanged:
			sum.Unchanged++
		case OutcomeChanged:
			sum.Changed++
		case OutcomeFailed:
			sum.Failed++
		}
	}

	out := make([]HostSummary, 0, len(order))
	for _, h := range order {
		out = append(out, *byHost[h])
	}
	return out
}

// MarkAborted records that a host never completed its run (connector
// failure, cancellation) so the recap table still lists it even if it
// produced zero transaction records.
func (s *Sink) MarkAborted(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted[host] = true
}

// RecapTable renders the per-host summary table to w, one row per host with
// changed/unchanged/failed counts and a status (ok, failed or aborted),
// using the teacher's tablewriter
// wrapper in internal/cli/output.
func (s *Sink) RecapTable(w io.Writer) error {
	data := output.NewTableData("HOST", "CHANGED", "UNCHANGED", "FAILED", "STATUS")
	seen := make(map[string]bool)
	for _, sum := range s.Summaries() {
		seen[sum.Host] = true
		status := "ok"
		if sum.Failed > 0 {
			status = "failed"
		}
		if s.isAborted(sum.Host) {
			status = "aborted"
		}
		data.AddRow(sum.Host, itoa(sum.Changed), itoa(sum.Unchanged), itoa(sum.Failed), status)
	}

	s.mu.Lock()
	for host := range s.aborted {
		if !seen[host] {
			data.AddRow(host, "0", "0", "0", "aborted")
		}
	}
	s.mu.Unlock()

	return output.PrintTable(w, data)
}

func (s *Sink) isAborted(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted[host]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Metrics exposes Prometheus counters/histogram for transactions, scraped
// only when the controller starts a loopback /metrics listener under
// --debug for the duration of one run (spec.md carries no persistent
// controller state, so these are a single run's gauges, not a long-lived
// service's).
type Metrics struct {
	TransactionsTotal *prometheus.CounterVec
	OperationDuration prometheus.Histogram
}

// NewMetrics builds and registers transaction metrics with reg. If reg is
// nil, the metrics are created but never registered (useful for tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "operations_total",
			Help:      "Total number of idempotent operations run, by outcome.",
		}, []string{"outcome"}),
		OperationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of one idempotent operation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.TransactionsTotal, m.OperationDuration)
	}
	return m
}

// Observe records one completed transaction.
func (m *Metrics) Observe(rec Record) {
	m.TransactionsTotal.WithLabelValues(string(rec.Outcome)).Inc()
	m.OperationDuration.Observe(rec.Elapsed.Seconds())
}

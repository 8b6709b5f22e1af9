// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting OKK reporter runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 1. Internal State (Source of Truth)
var (
	reports         int64
	reportsFailed   int64
	sendsFailed     int64
	apiFailures     int64
	nameChecks      int64
	namesFlagged    int64
	lastReport      int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promReports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okk_reports_total",
			Help: "Total successfully delivered daily reports",
		},
	)
	promReportsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okk_reports_failed_total",
			Help: "Total report runs that failed to build or deliver",
		},
	)
	promSendsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okk_sends_failed_total",
			Help: "Total failed notification deliveries",
		},
	)
	promAPIFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okk_api_failures_total",
			Help: "Total upstream API request failures",
		},
		[]string{"backend"},
	)
	promNameChecks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okk_name_checks_total",
			Help: "Total customer name fields verified",
		},
	)
	promNamesFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "okk_names_flagged_total",
			Help: "Total customer name fields flagged as malformed",
		},
	)
	promBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "okk_report_build_duration_seconds",
			Help: "Duration of full report assembly",
			Buckets: []float64{
				1,
				5,
				15,
				30,
				60,
				120,
				300,
				600,
			},
		},
	)
	promLastReport = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "okk_last_report_timestamp_seconds",
			Help: "Unix timestamp of last delivered report",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promReports,
		promReportsFailed,
		promSendsFailed,
		promAPIFailures,
		promNameChecks,
		promNamesFlagged,
		promBuildDuration,
		promLastReport,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncReport increments the number of delivered reports.
func IncReport() {
	atomic.AddInt64(&reports, counterInc)
	promReports.Inc()
}

// IncReportFailed increments the counter for failed report runs.
func IncReportFailed() {
	atomic.AddInt64(&reportsFailed, counterInc)
	promReportsFailed.Inc()
}

// IncSendFailed increments the counter for failed notification deliveries.
func IncSendFailed() {
	atomic.AddInt64(&sendsFailed, counterInc)
	promSendsFailed.Inc()
}

// IncAPIFailure increments the upstream failure counter for a backend
// ("retailcrm", "uis", "botapi", "openai").
func IncAPIFailure(backend string) {
	atomic.AddInt64(&apiFailures, counterInc)
	promAPIFailures.WithLabelValues(backend).Inc()
}

// IncNameCheck increments the counter for verified name fields.
func IncNameCheck() {
	atomic.AddInt64(&nameChecks, counterInc)
	promNameChecks.Inc()
}

// IncNameFlagged increments the counter for name fields flagged as malformed.
func IncNameFlagged() {
	atomic.AddInt64(&namesFlagged, counterInc)
	promNamesFlagged.Inc()
}

// ObserveBuildDuration records the duration (in seconds) of a full report
// assembly in the Prometheus histogram.
func ObserveBuildDuration(seconds float64) {
	promBuildDuration.Observe(seconds)
}

// SetLastReport stores the provided time as the last delivered report
// timestamp and updates the corresponding Prometheus gauge.
func SetLastReport(t time.Time) {
	atomic.StoreInt64(&lastReport, t.Unix())
	promLastReport.Set(float64(t.Unix()))
}

// 4. JSON Snapshot Struct (For Zabbix/API)

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Reports         int64  `json:"reports"`
	ReportsFailed   int64  `json:"reports_failed"`
	SendsFailed     int64  `json:"sends_failed"`
	APIFailures     int64  `json:"api_failures"`
	NameChecks      int64  `json:"name_checks"`
	NamesFlagged    int64  `json:"names_flagged"`
	LastReport      int64  `json:"last_report_timestamp"`
	LastReportHuman string `json:"last_report_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastReport)
	return StatsSnapshot{
		Reports:         atomic.LoadInt64(&reports),
		ReportsFailed:   atomic.LoadInt64(&reportsFailed),
		SendsFailed:     atomic.LoadInt64(&sendsFailed),
		APIFailures:     atomic.LoadInt64(&apiFailures),
		NameChecks:      atomic.LoadInt64(&nameChecks),
		NamesFlagged:    atomic.LoadInt64(&namesFlagged),
		LastReport:      ts,
		LastReportHuman: time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}

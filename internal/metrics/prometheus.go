package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "csv2jsonl"

// Collector holds all Prometheus metrics for a conversion run.
// Metrics live on a private registry so a run can be dumped as a textfile.
type Collector struct {
	registry *prometheus.Registry

	ConversionsTotal       *prometheus.CounterVec
	ConversionDuration     prometheus.Histogram
	RecordsTotal           *prometheus.CounterVec
	OverflowRowsTotal      *prometheus.CounterVec
	FormatResolutionsTotal *prometheus.CounterVec
	InputBytesTotal        prometheus.Counter
	ConversionErrorsTotal  *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of conversion runs",
			},
			[]string{"status"},
		),
		ConversionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Duration of conversion runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
			},
		),
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of records written",
			},
			[]string{"status"},
		),
		OverflowRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "overflow_rows_total",
				Help:      "Rows with more fields than the header, by overflow policy",
			},
			[]string{"policy"},
		),
		FormatResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "format_resolutions_total",
				Help:      "How the input format was chosen",
			},
			[]string{"source", "delimiter"},
		),
		InputBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "input_bytes_total",
				Help:      "Raw input bytes read",
			},
		),
		ConversionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversion_errors_total",
				Help:      "Failed conversion runs by error code",
			},
			[]string{"error_code"},
		),
	}
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// RecordFormat records how the input format was resolved
func (c *Collector) RecordFormat(source, delimiter string) {
	c.FormatResolutionsTotal.WithLabelValues(source, delimiter).Inc()
}

// RecordConversionCompleted records a finished run
func (c *Collector) RecordConversionCompleted(status string, duration float64) {
	c.ConversionsTotal.WithLabelValues(status).Inc()
	c.ConversionDuration.Observe(duration)
}

// RecordConversionError records the error code of a failed run
func (c *Collector) RecordConversionError(errorCode string) {
	if errorCode == "" {
		errorCode = "unknown"
	}
	c.ConversionErrorsTotal.WithLabelValues(errorCode).Inc()
}

// RecordRecords records written records
func (c *Collector) RecordRecords(status string, count int) {
	c.RecordsTotal.WithLabelValues(status).Add(float64(count))
}

// RecordOverflowRows records rows wider than the header
func (c *Collector) RecordOverflowRows(policy string, count int) {
	if count == 0 {
		return
	}
	c.OverflowRowsTotal.WithLabelValues(policy).Add(float64(count))
}

// RecordInputBytes records raw bytes read from the input
func (c *Collector) RecordInputBytes(n int64) {
	c.InputBytesTotal.Add(float64(n))
}

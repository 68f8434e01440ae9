package prometheus

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tokengate "github.com/glyphlabs/tokengate"
	"github.com/glyphlabs/tokengate/metrics/export/internaldefs"
)

// ErrNilSource is returned when the exporter is constructed without an
// engine or snapshot source.
var ErrNilSource = errors.New("nil metrics source")

type metricsSource interface {
	MetricsSnapshot() tokengate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a [prometheus.Collector] over engine counters. Collect takes
// one snapshot per scrape and emits const metrics, so the engine's hot path
// never touches Prometheus types.
type Exporter struct {
	source       metricsSource
	counterDescs map[tokengate.MetricID]*prometheus.Desc
	histDescs    map[tokengate.MetricID]*prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewExporter builds a collector reading from engine.
func NewExporter(engine *tokengate.Engine) (*Exporter, error) {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource builds a collector from any snapshot source.
func NewExporterFromSource(source metricsSource) (*Exporter, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:       source,
		counterDescs: make(map[tokengate.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histDescs:    make(map[tokengate.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		droppedDesc: prometheus.NewDesc(
			"tokengate_audit_dropped_total",
			"Audit events dropped by dispatcher backpressure.",
			nil, nil,
		),
	}

	for _, def := range internaldefs.CounterDefs {
		e.counterDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}

	return e, nil
}

// Describe implements [prometheus.Collector].
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- e.counterDescs[def.ID]
	}
	for _, def := range internaldefs.HistogramDefs {
		ch <- e.histDescs[def.ID]
	}
	ch <- e.droppedDesc
}

// Collect implements [prometheus.Collector].
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snapshot := e.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		m, err := prometheus.NewConstMetric(
			e.counterDescs[def.ID],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]),
		)
		if err == nil {
			ch <- m
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]

		// Sum is not tracked in core snapshots; 0 keeps the series shape stable.
		m, err := prometheus.NewConstHistogram(e.histDescs[def.ID], count, 0, buckets)
		if err == nil {
			ch <- m
		}
	}

	if m, err := prometheus.NewConstMetric(
		e.droppedDesc,
		prometheus.CounterValue,
		float64(e.source.AuditDropped()),
	); err == nil {
		ch <- m
	}
}

// Handler registers the exporter on a fresh registry and returns a scrape
// handler, for callers that do not manage their own registry.
func (e *Exporter) Handler() (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

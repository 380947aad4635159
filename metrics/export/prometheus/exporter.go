package prometheus

import (
	"net/http"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource supplies snapshots to the exporter. *sessiongate.Engine
// satisfies it.
type MetricsSource interface {
	MetricsSnapshot() sessiongate.MetricsSnapshot
}

type counterDesc struct {
	id   sessiongate.MetricID
	desc *prom.Desc
}

// PrometheusExporter is a prometheus.Collector over engine snapshots.
type PrometheusExporter struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []counterDesc
	registry   *prom.Registry
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *sessiongate.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource creates an exporter from a custom source.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]counterDesc, 0, len(internaldefs.HistogramDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return p
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
}

// Collect implements prometheus.Collector. A disabled engine yields nothing.
func (p *PrometheusExporter) Collect(ch chan<- prom.Metric) {
	if p == nil || p.source == nil {
		return
	}
	snapshot := p.source.MetricsSnapshot()

	if len(snapshot.Counters) > 0 {
		for _, c := range p.counters {
			ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snapshot.Counters[c.id]))
		}
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// Sum is not tracked by the engine.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
}

// Register adds the exporter to reg.
func (p *PrometheusExporter) Register(reg prom.Registerer) error {
	return reg.Register(p)
}

// Handler serves the exporter from a private registry so nothing leaks into
// the process-wide default one.
func (p *PrometheusExporter) Handler() http.Handler {
	if p.registry == nil {
		p.registry = prom.NewRegistry()
		p.registry.MustRegister(p)
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

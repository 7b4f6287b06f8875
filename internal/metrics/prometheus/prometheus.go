package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/propshare-labs/distributor/internal/metrics/metricsTypes"
	"go.uber.org/zap"
)

type PrometheusMetricsConfig struct {
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig
}

type PrometheusMetricsClient struct {
	logger *zap.Logger
	config *PrometheusMetricsConfig

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusMetricsClient(config *PrometheusMetricsConfig, l *zap.Logger) (*PrometheusMetricsClient, error) {
	client := &PrometheusMetricsClient{
		config: config,
		logger: l,

		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	client.initializeTypes()

	return client, nil
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '.' || r == '-' {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

func (pmc *PrometheusMetricsClient) initializeTypes() {
	for t, types := range pmc.config.Metrics {
		for _, mt := range types {
			name := sanitizeName(mt.Name)
			switch t {
			case metricsTypes.MetricsType_Incr:
				if _, ok := pmc.counters[name]; ok {
					continue
				}
				pmc.counters[name] = prometheus.NewCounterVec(prometheus.CounterOpts{
					Name: name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.counters[name])
			case metricsTypes.MetricsType_Gauge:
				if _, ok := pmc.gauges[name]; ok {
					continue
				}
				pmc.gauges[name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
					Name: name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.gauges[name])
			case metricsTypes.MetricsType_Timing:
				if _, ok := pmc.histograms[name]; ok {
					continue
				}
				pmc.histograms[name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
					Name: name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.histograms[name])
			}
		}
	}
}

func formatLabels(labels []metricsTypes.MetricsLabel) prometheus.Labels {
	promLabels := prometheus.Labels{}
	for _, label := range labels {
		promLabels[label.Name] = label.Value
	}
	return promLabels
}

func (pmc *PrometheusMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	counter, ok := pmc.counters[sanitizeName(name)]
	if !ok {
		pmc.logger.Sugar().Debugw("Unknown counter metric", zap.String("name", name))
		return nil
	}
	counter.With(formatLabels(labels)).Add(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	gauge, ok := pmc.gauges[sanitizeName(name)]
	if !ok {
		pmc.logger.Sugar().Debugw("Unknown gauge metric", zap.String("name", name))
		return nil
	}
	gauge.With(formatLabels(labels)).Set(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	histogram, ok := pmc.histograms[sanitizeName(name)]
	if !ok {
		pmc.logger.Sugar().Debugw("Unknown timing metric", zap.String("name", name))
		return nil
	}
	histogram.With(formatLabels(labels)).Observe(value.Seconds())
	return nil
}

package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_DistributionCreated = "distributionCreated"
	Metric_Incr_ClaimProcessed      = "claimProcessed"
	Metric_Incr_ClaimRejected       = "claimRejected"
	Metric_Incr_HttpRequest         = "rpc.http.request"

	Metric_Gauge_ActiveDistributions = "activeDistributions"

	Metric_Timing_ClaimDuration = "claims.duration"
	Metric_Timing_HttpDuration  = "rpc.http.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_DistributionCreated,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimProcessed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimRejected,
			Labels: []string{"reason"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_ActiveDistributions,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_ClaimDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{},
		},
	},
}

// Package metrics exports generation metrics to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blimu-dev/rpc-gen/pkg/generator"
	"github.com/blimu-dev/rpc-gen/pkg/ir"
	"github.com/blimu-dev/rpc-gen/pkg/output"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// GenerationObserver implements generator.Observer.
type GenerationObserver struct {
	endpoints *prometheus.CounterVec
	types     *prometheus.CounterVec
	units     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var _ generator.Observer = (*GenerationObserver)(nil)

// NewGenerationObserver registers generation metrics on the registry.
func NewGenerationObserver(reg *prometheus.Registry) *GenerationObserver {
	o := &GenerationObserver{
		endpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcgen_endpoints_total",
			Help: "Endpoints emitted per client.",
		}, []string{"client", "type"}),
		types: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcgen_named_types_total",
			Help: "Named types synthesized per client.",
		}, []string{"client", "type"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcgen_units_total",
			Help: "Output units by client and outcome.",
		}, []string{"client", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcgen_failures_total",
			Help: "Failed targets by client and error kind.",
		}, []string{"client", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcgen_target_duration_seconds",
			Help:    "Wall time of one target from naming to the last write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}
	reg.MustRegister(o.endpoints, o.types, o.units, o.failures, o.duration)
	return o
}

func (o *GenerationObserver) ObserveTarget(stats generator.TargetStats, err error) {
	o.duration.WithLabelValues(stats.Type).Observe(stats.Duration.Seconds())
	if err != nil {
		o.failures.WithLabelValues(stats.Client, Kind(err)).Inc()
		return
	}
	o.endpoints.WithLabelValues(stats.Client, stats.Type).Add(float64(stats.Endpoints))
	o.types.WithLabelValues(stats.Client, stats.Type).Add(float64(stats.Types))
	o.units.WithLabelValues(stats.Client, "written").Add(float64(len(stats.Output.Written)))
	o.units.WithLabelValues(stats.Client, "unchanged").Add(float64(len(stats.Output.Unchanged)))
	o.units.WithLabelValues(stats.Client, "skipped").Add(float64(len(stats.Output.Skipped)))
	o.units.WithLabelValues(stats.Client, "removed").Add(float64(len(stats.Output.Removed)))
}

// Kind classifies err for the failures counter.
func Kind(err error) string {
	var (
		load      *ir.SchemaLoadError
		adapter   *ir.AdapterError
		params    *ir.PathParamMismatchError
		collision *ir.NamingCollisionError
		emission  *ir.EmissionError
	)
	switch {
	case errors.As(err, &load):
		return "schema_load"
	case errors.As(err, &adapter):
		return "adapter"
	case errors.As(err, &params):
		return "path_param_mismatch"
	case errors.As(err, &collision):
		return "naming_collision"
	case errors.As(err, &emission):
		return "emission"
	case errors.Is(err, output.ErrDrift):
		return "drift"
	}
	return "other"
}

// WriteFile writes the registry in the node-exporter textfile format.
func WriteFile(reg *prometheus.Registry, path string) error {
	return prometheus.WriteToTextfile(path, reg)
}

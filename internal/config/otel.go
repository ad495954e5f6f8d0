package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// Span exporters accepted by MICROMAN_TRACE_EXPORTER and trace --exporter.
const (
	ExporterAuto   = "auto"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// OTELConfig selects where exported captures go. The collector settings are
// the standard OTEL_* variables.
type OTELConfig struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"micro-man"`
	// Resource holds OTEL_RESOURCE_ATTRIBUTES, key=value pairs separated
	// by commas.
	Resource       map[string]string `env:"OTEL_RESOURCE_ATTRIBUTES" envKeyValSeparator:"="`
	Endpoint       string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracesEndpoint string            `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	Exporter       string            `env:"MICROMAN_TRACE_EXPORTER" envDefault:"auto"`
}

// ParseOTELConfig reads the exporter configuration from the environment.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}
	return &cfg, nil
}

// CollectorEndpoint returns the traces endpoint, falling back to the
// generic OTLP endpoint. Empty means no collector is configured.
func (c *OTELConfig) CollectorEndpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.Endpoint
}

// ResolveExporter returns ExporterStdout or ExporterOTLP. Auto picks OTLP
// when a collector endpoint is set.
func (c *OTELConfig) ResolveExporter() (string, error) {
	switch strings.ToLower(c.Exporter) {
	case "", ExporterAuto:
		if c.CollectorEndpoint() == "" {
			return ExporterStdout, nil
		}
		return ExporterOTLP, nil
	case ExporterStdout:
		return ExporterStdout, nil
	case ExporterOTLP:
		if c.CollectorEndpoint() == "" {
			return "", fmt.Errorf("exporter %q needs OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ExporterOTLP)
		}
		return ExporterOTLP, nil
	default:
		return "", fmt.Errorf("unknown exporter %q: expected %s, %s or %s", c.Exporter, ExporterAuto, ExporterStdout, ExporterOTLP)
	}
}

// ResourceAttributes returns the resource attributes sorted by key. Blank
// keys are dropped.
func (c *OTELConfig) ResourceAttributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for k, v := range c.Resource {
		if key := strings.TrimSpace(k); key != "" {
			attrs = append(attrs, attribute.String(key, strings.TrimSpace(v)))
		}
	}
	slices.SortFunc(attrs, func(a, b attribute.KeyValue) int {
		return strings.Compare(string(a.Key), string(b.Key))
	})
	return attrs
}

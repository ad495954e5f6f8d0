package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MICROMAN_FORMAT", "MICROMAN_CLASSIFIER", "MICROMAN_TAGS", "MICROMAN_TICK_RATE",
		"MICROMAN_EXEMPT_DATA", "MICROMAN_LOG_LEVEL", "MICROMAN_METRICS_FILE",
		"MICROMAN_ARCHIVE_DIR", "MICROMAN_TRACE_ID", "MICROMAN_PARENT_ID",
		"MICROMAN_ATTRIBUTES", "MICROMAN_FILTER",
	} {
		t.Setenv(name, "")
	}
}

func TestParseEnvConfig(t *testing.T) {
	t.Setenv("MICROMAN_FORMAT", "packed")
	t.Setenv("MICROMAN_CLASSIFIER", "suffix")
	t.Setenv("MICROMAN_TICK_RATE", "32768")
	t.Setenv("MICROMAN_EXEMPT_DATA", "true")
	t.Setenv("MICROMAN_TRACE_ID", "test_trace")
	t.Setenv("MICROMAN_ATTRIBUTES", "key=value")

	cfg, err := ParseEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "packed", cfg.Format)
	assert.Equal(t, "suffix", cfg.Classifier)
	assert.InDelta(t, 32768.0, cfg.TickRate, 0)
	assert.True(t, cfg.ExemptData)
	assert.Equal(t, "test_trace", cfg.TraceID)
	assert.Equal(t, "key=value", cfg.Attributes)
}

func TestParseEnvConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "hex", cfg.Format)
	assert.Equal(t, "auto", cfg.Classifier)
	assert.InDelta(t, 100000.0, cfg.TickRate, 0)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".micro-man", cfg.ArchiveDir)
	assert.False(t, cfg.ExemptData)
	assert.Empty(t, cfg.TraceID)
	assert.Empty(t, cfg.Attributes)
}

func TestParseEnvConfig_BadTickRate(t *testing.T) {
	t.Setenv("MICROMAN_TICK_RATE", "fast")

	_, err := ParseEnvConfig()
	require.Error(t, err)
}

func TestLoad_EnvAttributes(t *testing.T) {
	clearEnv(t)
	t.Setenv("MICROMAN_ATTRIBUTES", "env_attr=name;other=tag")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.CustomAttributes, 2)
	assert.Equal(t, "env_attr", cfg.CustomAttributes[0].Name)
	assert.Equal(t, "tag", cfg.CustomAttributes[1].Expression)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidEnvAttributes(t *testing.T) {
	clearEnv(t)
	t.Setenv("MICROMAN_ATTRIBUTES", "no_equals")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MICROMAN_ATTRIBUTES")
}

func TestAppendAttributes_Merge(t *testing.T) {
	clearEnv(t)
	t.Setenv("MICROMAN_ATTRIBUTES", "env_attr=env_val")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.AppendAttributes([]string{"cli_attr=cli_val"}))

	require.Len(t, cfg.CustomAttributes, 2)
	assert.Equal(t, "env_attr", cfg.CustomAttributes[0].Name)
	assert.Equal(t, "cli_attr", cfg.CustomAttributes[1].Name)
}

func TestAppendAttributes_Invalid(t *testing.T) {
	cfg := &Config{}
	err := cfg.AppendAttributes([]string{"ok=tag", "=value"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name cannot be empty")
}

func TestValidate(t *testing.T) {
	valid := Config{Format: "hex", Classifier: "range", TickRate: 1000, LogLevel: "debug"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"format", func(c *Config) { c.Format = "octal" }, "octal"},
		{"classifier", func(c *Config) { c.Classifier = "magic" }, "magic"},
		{"tick rate", func(c *Config) { c.TickRate = 0 }, "tick rate"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{Format: "base64", LogLevel: "warn", TickRate: 1000}

	format, err := cfg.RecordFormat()
	require.NoError(t, err)
	assert.Equal(t, "packed", format.Name())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	table, err := cfg.TagTable(record.Hex{})
	require.NoError(t, err)
	assert.NotEmpty(t, table)

	table, err = cfg.TagTable(format)
	require.NoError(t, err)
	assert.Empty(t, table)

	origin := time.Unix(1000, 0)
	conv, err := cfg.TickConverter(origin)
	require.NoError(t, err)
	assert.Equal(t, origin.Add(time.Second), conv.TicksToWallClock(1000))
}

func TestTagClassifier_Auto(t *testing.T) {
	cfg := Config{Classifier: ClassifierAuto}

	c, err := cfg.TagClassifier(record.Hex{}, nil)
	require.NoError(t, err)
	assert.IsType(t, tagclass.SuffixClassifier{}, c)

	c, err = cfg.TagClassifier(record.Packed{}, nil)
	require.NoError(t, err)
	assert.IsType(t, tagclass.RangeClassifier{}, c)

	cfg.Classifier = "range"
	c, err = cfg.TagClassifier(record.Hex{}, nil)
	require.NoError(t, err)
	assert.IsType(t, tagclass.RangeClassifier{}, c)
}

func TestParseCustomAttribute_WithEquals(t *testing.T) {
	attr, err := ParseCustomAttribute(`check=name=="TASK_START"`)
	require.NoError(t, err)
	assert.Equal(t, "check", attr.Name)
	assert.Equal(t, `name=="TASK_START"`, attr.Expression)
}

func TestParseCustomAttribute_InvalidFormat(t *testing.T) {
	_, err := ParseCustomAttribute("invalid_no_equals")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid attribute format")
	assert.Contains(t, err.Error(), "NAME=EXPR")
}

func TestParseAttributeString_Valid(t *testing.T) {
	attrs, err := ParseAttributeString(`foo=bar;baz=env["TEST"];k=kind`)

	require.NoError(t, err)
	require.Len(t, attrs, 3)
	assert.Equal(t, "foo", attrs[0].Name)
	assert.Equal(t, "bar", attrs[0].Expression)
	assert.Equal(t, "baz", attrs[1].Name)
	assert.Equal(t, `env["TEST"]`, attrs[1].Expression)
	assert.Equal(t, "kind", attrs[2].Expression)
}

func TestParseAttributeString_Empty(t *testing.T) {
	attrs, err := ParseAttributeString("")
	require.NoError(t, err)
	assert.Nil(t, attrs)
}

func TestParseAttributeString_EmptyName(t *testing.T) {
	_, err := ParseAttributeString("=value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name cannot be empty")
}

func TestParseAttributeString_EmptyExpression(t *testing.T) {
	_, err := ParseAttributeString("name=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression cannot be empty")
}

func TestParseAttributeString_Whitespace(t *testing.T) {
	attrs, err := ParseAttributeString("  foo  =  bar  ;  baz  =  qux  ")

	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, "foo", attrs[0].Name)
	assert.Equal(t, "bar", attrs[0].Expression)
	assert.Equal(t, "baz", attrs[1].Name)
	assert.Equal(t, "qux", attrs[1].Expression)
}

func TestParseAttributeString_EmptySections(t *testing.T) {
	attrs, err := ParseAttributeString("foo=bar;;baz=qux;")

	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, "foo", attrs[0].Name)
	assert.Equal(t, "baz", attrs[1].Name)
}

func TestOTELConfig_CollectorEndpoint(t *testing.T) {
	cfg := OTELConfig{}
	assert.Empty(t, cfg.CollectorEndpoint())

	cfg.Endpoint = "collector:4318"
	assert.Equal(t, "collector:4318", cfg.CollectorEndpoint())

	cfg.TracesEndpoint = "traces:4318"
	assert.Equal(t, "traces:4318", cfg.CollectorEndpoint())
}

func TestOTELConfig_ResolveExporter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OTELConfig
		want    string
		wantErr bool
	}{
		{name: "auto without collector", cfg: OTELConfig{Exporter: ExporterAuto}, want: ExporterStdout},
		{name: "auto with collector", cfg: OTELConfig{Exporter: ExporterAuto, Endpoint: "collector:4318"}, want: ExporterOTLP},
		{name: "empty is auto", cfg: OTELConfig{TracesEndpoint: "http://traces:4318/v1/traces"}, want: ExporterOTLP},
		{name: "stdout wins over collector", cfg: OTELConfig{Exporter: "STDOUT", Endpoint: "collector:4318"}, want: ExporterStdout},
		{name: "otlp needs collector", cfg: OTELConfig{Exporter: ExporterOTLP}, wantErr: true},
		{name: "unknown", cfg: OTELConfig{Exporter: "jaeger"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveExporter()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOTELConfig_ResourceAttributes(t *testing.T) {
	cfg := OTELConfig{Resource: map[string]string{"deployment.environment": "lab", " board": "rev2 ", "": "x"}}

	attrs := cfg.ResourceAttributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "board", string(attrs[0].Key))
	assert.Equal(t, "rev2", attrs[0].Value.AsString())
	assert.Equal(t, "deployment.environment", string(attrs[1].Key))
	assert.Equal(t, "lab", attrs[1].Value.AsString())
}

func TestParseOTELConfig_Defaults(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	t.Setenv("MICROMAN_TRACE_EXPORTER", "")

	cfg, err := ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, "micro-man", cfg.ServiceName)
	assert.Empty(t, cfg.CollectorEndpoint())

	kind, err := cfg.ResolveExporter()
	require.NoError(t, err)
	assert.Equal(t, ExporterStdout, kind)
}

func TestParseOTELConfig_Environment(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "board=rev2,deployment.environment=lab")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("MICROMAN_TRACE_EXPORTER", "otlp")

	cfg, err := ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"board": "rev2", "deployment.environment": "lab"}, cfg.Resource)

	kind, err := cfg.ResolveExporter()
	require.NoError(t, err)
	assert.Equal(t, ExporterOTLP, kind)
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
	"github.com/ayushev/micro-man-tools/internal/timesync"
)

// ClassifierAuto selects the classifier from the record format.
const ClassifierAuto = "auto"

// CustomAttribute is a named expression evaluated per entry.
type CustomAttribute struct {
	Name       string
	Expression string
}

// EnvConfig holds configuration from MICROMAN_* environment variables.
type EnvConfig struct {
	Format      string  `env:"MICROMAN_FORMAT" envDefault:"hex"`
	Classifier  string  `env:"MICROMAN_CLASSIFIER" envDefault:"auto"`
	Tags        string  `env:"MICROMAN_TAGS"`
	TickRate    float64 `env:"MICROMAN_TICK_RATE" envDefault:"100000"`
	ExemptData  bool    `env:"MICROMAN_EXEMPT_DATA" envDefault:"false"`
	LogLevel    string  `env:"MICROMAN_LOG_LEVEL" envDefault:"info"`
	MetricsFile string  `env:"MICROMAN_METRICS_FILE"`
	ArchiveDir  string  `env:"MICROMAN_ARCHIVE_DIR" envDefault:".micro-man"`
	TraceID     string  `env:"MICROMAN_TRACE_ID"`
	ParentID    string  `env:"MICROMAN_PARENT_ID"`
	Attributes  string  `env:"MICROMAN_ATTRIBUTES"`
	Filter      string  `env:"MICROMAN_FILTER"`
}

// ParseEnvConfig parses configuration from environment variables.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	return &cfg, nil
}

// Config is the resolved configuration of one invocation.
// Command-line flags are bound directly to its fields on top of the
// environment defaults.
type Config struct {
	Format      string
	Classifier  string
	TagsPath    string
	TickRate    float64
	ExemptData  bool
	LogLevel    string
	MetricsFile string
	ArchiveDir  string
	TraceID     string
	ParentID    string
	Filter      string

	// CustomAttributes holds environment attributes first, then the ones
	// added with AppendAttributes.
	CustomAttributes []CustomAttribute
}

// Load builds a Config from environment defaults.
func Load() (*Config, error) {
	envCfg, err := ParseEnvConfig()
	if err != nil {
		return nil, err
	}

	attrs, err := ParseAttributeString(envCfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("MICROMAN_ATTRIBUTES: %w", err)
	}

	return &Config{
		Format:           envCfg.Format,
		Classifier:       envCfg.Classifier,
		TagsPath:         envCfg.Tags,
		TickRate:         envCfg.TickRate,
		ExemptData:       envCfg.ExemptData,
		LogLevel:         envCfg.LogLevel,
		MetricsFile:      envCfg.MetricsFile,
		ArchiveDir:       envCfg.ArchiveDir,
		TraceID:          envCfg.TraceID,
		ParentID:         envCfg.ParentID,
		Filter:           envCfg.Filter,
		CustomAttributes: attrs,
	}, nil
}

// AppendAttributes parses NAME=EXPR specs and appends them after the
// attributes already configured.
func (c *Config) AppendAttributes(specs []string) error {
	for _, spec := range specs {
		attr, err := ParseCustomAttribute(spec)
		if err != nil {
			return err
		}
		c.CustomAttributes = append(c.CustomAttributes, attr)
	}
	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	var errs []error

	if _, err := record.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if !c.autoClassifier() {
		if _, err := tagclass.ParseClassifier(c.Classifier, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %v", c.TickRate))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}

	return errors.Join(errs...)
}

// RecordFormat returns the configured record format.
func (c *Config) RecordFormat() (record.Format, error) {
	return record.ParseFormat(c.Format)
}

// Level returns the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// TagTable returns the tag table from TagsPath. Without a path, hex
// captures use the built-in timestamp table and packed captures get an
// empty table.
func (c *Config) TagTable(format record.Format) (tagclass.Table, error) {
	if c.TagsPath != "" {
		return tagclass.LoadTable(c.TagsPath)
	}
	if format.Name() == record.FormatHex {
		return tagclass.DefaultTimestampTable(), nil
	}
	return tagclass.Table{}, nil
}

func (c *Config) autoClassifier() bool {
	return c.Classifier == "" || strings.EqualFold(c.Classifier, ClassifierAuto)
}

// TagClassifier returns the configured classifier. The auto classifier
// picks suffix naming for hex captures and id ranges for packed ones.
func (c *Config) TagClassifier(format record.Format, table tagclass.Table) (tagclass.Classifier, error) {
	name := c.Classifier
	if c.autoClassifier() {
		name = "suffix"
		if format.Name() == record.FormatPacked {
			name = "range"
		}
	}
	return tagclass.ParseClassifier(name, table)
}

// TickConverter returns a converter for the configured tick rate with
// counter zero mapped to origin.
func (c *Config) TickConverter(origin time.Time) (*timesync.Converter, error) {
	return timesync.NewConverter(c.TickRate, origin)
}

// ParseCustomAttribute parses one NAME=EXPR spec. The expression may itself
// contain '='.
func ParseCustomAttribute(spec string) (CustomAttribute, error) {
	name, expression, ok := strings.Cut(spec, "=")
	if !ok {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q: expected NAME=EXPR", spec)
	}

	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", spec)
	}
	if expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", spec)
	}

	return CustomAttribute{Name: name, Expression: expression}, nil
}

// ParseAttributeString parses a semicolon separated list of NAME=EXPR specs.
// Empty sections are skipped.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	var attrs []CustomAttribute
	for _, section := range strings.Split(s, ";") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		attr, err := ParseCustomAttribute(section)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

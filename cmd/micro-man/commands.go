package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/archive"
	"github.com/ayushev/micro-man-tools/internal/attributes"
	"github.com/ayushev/micro-man-tools/internal/capture"
	"github.com/ayushev/micro-man-tools/internal/config"
	"github.com/ayushev/micro-man-tools/internal/delta"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
	"github.com/ayushev/micro-man-tools/internal/eventstream"
	"github.com/ayushev/micro-man-tools/internal/metrics"
	tracing "github.com/ayushev/micro-man-tools/internal/otel"
	"github.com/ayushev/micro-man-tools/internal/output"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	cfg     *config.Config
	attrs   []string
	scaled  bool
	logger  *zap.Logger
	metrics *metrics.Recorder
	stdout  io.Writer
	stderr  io.Writer
	environ map[string]string
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: metrics.New(),
		stdout:  stdout,
		stderr:  stderr,
		environ: attributes.Environ(),
	}

	root := &cobra.Command{
		Use:           "micro-man",
		Short:         "Decode and analyze microtag and timestamp captures",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Format, "format", cfg.Format, "record format: hex or packed")
	flags.StringVar(&cfg.Classifier, "classifier", cfg.Classifier, "tag classifier: auto, range or suffix")
	flags.StringVar(&cfg.TagsPath, "tags", cfg.TagsPath, "YAML tag table")
	flags.Float64Var(&cfg.TickRate, "tick-rate", cfg.TickRate, "counter frequency in Hz")
	flags.BoolVar(&cfg.ExemptData, "exempt-data", cfg.ExemptData, "keep data and reserved payloads out of counter unwrapping; without it a large payload can register as a counter wrap")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file on exit")
	flags.StringVar(&cfg.Filter, "filter", cfg.Filter, "only report entries matching this expression")
	flags.StringArrayVarP(&a.attrs, "attribute", "a", nil, "custom attribute NAME=EXPR (repeatable)")

	root.AddCommand(
		a.printCmd(),
		a.traceCmd(),
		a.deltaCmd(),
		a.definesCmd(),
		a.archiveCmd(),
	)

	return root, nil
}

func (a *app) setup() error {
	if err := a.cfg.AppendAttributes(a.attrs); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level, err := a.cfg.Level()
	if err != nil {
		return err
	}
	a.logger = newLogger(level, a.stderr)
	return nil
}

func (a *app) teardown() error {
	_ = a.logger.Sync()
	if a.cfg.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteFile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// pipeline holds what every capture of one command is processed with.
type pipeline struct {
	format record.Format
	table  tagclass.Table
	opts   capture.Options
	proc   func(handlers ...eventprocessor.EntryHandler) *eventprocessor.Processor
}

func (a *app) pipeline() (*pipeline, error) {
	format, err := a.cfg.RecordFormat()
	if err != nil {
		return nil, err
	}
	table, err := a.cfg.TagTable(format)
	if err != nil {
		return nil, err
	}
	classifier, err := a.cfg.TagClassifier(format, table)
	if err != nil {
		return nil, err
	}

	opts := capture.Options{Format: format, Logger: a.logger, Metrics: a.metrics}
	if a.cfg.ExemptData {
		opts.Exempt = func(tag uint16) bool {
			return !classifier.Classify(tag).Kind.TimeBased()
		}
	}

	return &pipeline{
		format: format,
		table:  table,
		opts:   opts,
		proc: func(handlers ...eventprocessor.EntryHandler) *eventprocessor.Processor {
			return eventprocessor.NewProcessor(classifier, a.logger, a.metrics, handlers...)
		},
	}, nil
}

func (a *app) load(ctx context.Context, p *pipeline, paths []string) ([]*capture.Capture, error) {
	captures, err := capture.LoadAll(ctx, paths, p.opts)
	if err != nil {
		return nil, err
	}
	for _, c := range captures {
		if err := c.RequireEntries(); err != nil {
			return nil, err
		}
	}
	return captures, nil
}

func captureInfo(c *capture.Capture) attributes.CaptureInfo {
	return attributes.CaptureInfo{Name: c.Name, Format: c.Format.Name(), Entries: len(c.Entries)}
}

// textFormatter creates the text report handler of one capture.
func (a *app) textFormatter(p *pipeline, info attributes.CaptureInfo) (*output.TextFormatter, error) {
	conv, err := a.cfg.TickConverter(time.Time{})
	if err != nil {
		return nil, err
	}
	filter, err := attributes.NewFilter(a.cfg.Filter, a.environ)
	if err != nil {
		return nil, err
	}

	return output.NewTextFormatter(a.stdout, info, conv, output.TextOptions{
		TagDigits:       output.TagDigits(p.format),
		KeyWidth:        output.KeyWidth(p.table),
		ScaledDurations: a.scaled,
		Filter:          filter,
	}), nil
}

// report prints the text report of one capture.
func (a *app) report(p *pipeline, c *capture.Capture) error {
	f, err := a.textFormatter(p, captureInfo(c))
	if err != nil {
		return err
	}
	_, err = p.proc(f).Process(c)
	return err
}

func (a *app) printCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print <capture>... | print -",
		Short: "Decode captures and print the timestamp report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "-" {
				return a.printStdin(cmd)
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			captures, err := a.load(cmd.Context(), p, args)
			if err != nil {
				return err
			}
			for i, c := range captures {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				if err := a.report(p, c); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.scaled, "scaled", false, "print interval durations in the largest fitting unit")
	return cmd
}

// printStdin reports a capture piped on stdin as it is read. An interrupt
// ends the input early and still prints the summary.
func (a *app) printStdin(cmd *cobra.Command) error {
	p, err := a.pipeline()
	if err != nil {
		return err
	}

	f, err := a.textFormatter(p, attributes.CaptureInfo{Name: "stdin", Format: p.format.Name()})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = eventstream.New("stdin", cmd.InOrStdin(), p.opts, p.proc(f)).Run(ctx)
	return err
}

func (a *app) traceCmd() *cobra.Command {
	var origin, exporter string

	cmd := &cobra.Command{
		Use:   "trace <capture>...",
		Short: "Export captures as OpenTelemetry spans",
		Long: `Export captures as OpenTelemetry spans.

Spans go to OTEL_EXPORTER_OTLP_TRACES_ENDPOINT or OTEL_EXPORTER_OTLP_ENDPOINT
over OTLP/HTTP, or to stdout when neither is set. --exporter (or
MICROMAN_TRACE_EXPORTER) forces one of them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if origin != "" {
				var err error
				if start, err = time.Parse(time.RFC3339Nano, origin); err != nil {
					return fmt.Errorf("invalid --origin: %w", err)
				}
			}
			return a.trace(cmd.Context(), args, start, exporter)
		},
	}
	cmd.Flags().StringVar(&a.cfg.TraceID, "trace-id", a.cfg.TraceID, "trace ID expression over capture, format, entries and env")
	cmd.Flags().StringVar(&a.cfg.ParentID, "parent-id", a.cfg.ParentID, "parent span ID expression over capture, format, entries and env")
	cmd.Flags().StringVar(&origin, "origin", "", "RFC 3339 wall-clock time of the first time-based entry (default now)")
	cmd.Flags().StringVar(&exporter, "exporter", "", "span exporter: auto, stdout or otlp")
	return cmd
}

func (a *app) trace(ctx context.Context, paths []string, origin time.Time, exporter string) error {
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	captures, err := a.load(ctx, p, paths)
	if err != nil {
		return err
	}

	conv, err := a.cfg.TickConverter(origin)
	if err != nil {
		return err
	}
	evaluator, err := attributes.NewEvaluator(a.cfg.CustomAttributes, a.environ, a.logger)
	if err != nil {
		return err
	}
	filter, err := attributes.NewFilter(a.cfg.Filter, a.environ)
	if err != nil {
		return err
	}
	traceIDs, err := attributes.NewTraceIDEvaluator(a.cfg.TraceID, a.environ)
	if err != nil {
		return err
	}
	parentIDs, err := attributes.NewParentIDEvaluator(a.cfg.ParentID, a.environ)
	if err != nil {
		return err
	}

	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return err
	}
	if exporter != "" {
		otelCfg.Exporter = exporter
	}
	tp, err := tracing.InitProvider(ctx, otelCfg, version, a.stdout, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownProvider(shutdownCtx, tp); err != nil {
			a.logger.Error("shutting down tracer provider", zap.Error(err))
		}
	}()
	tracer := tp.Tracer("micro-man")

	for _, c := range captures {
		f := output.NewOTELFormatter(tracer, captureInfo(c), conv, output.OTELOptions{
			Attributes: evaluator,
			TraceID:    traceIDs,
			ParentID:   parentIDs,
			Filter:     filter,
			Logger:     a.logger,
		})
		sum, err := p.proc(f).Process(c)
		if err != nil {
			return err
		}
		a.logger.Info("capture exported", zap.String("capture", c.Name), zap.Int("intervals", sum.Intervals))
	}
	return nil
}

func parseSyncTags(values []string) (delta.SyncTags, error) {
	if len(values) != 4 {
		return delta.SyncTags{}, fmt.Errorf("--sync needs four tags (1a,2b,3b,4a), got %d", len(values))
	}
	var tags [4]uint16
	for i, v := range values {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 16)
		if err != nil {
			return delta.SyncTags{}, fmt.Errorf("invalid sync tag %q: %w", v, err)
		}
		tags[i] = uint16(n)
	}
	return delta.SyncTags{T1A: tags[0], T2B: tags[1], T3B: tags[2], T4A: tags[3]}, nil
}

func (a *app) deltaCmd() *cobra.Command {
	defaults := delta.DefaultSyncTags
	sync := []string{
		fmt.Sprintf("0x%02X", defaults.T1A),
		fmt.Sprintf("0x%02X", defaults.T2B),
		fmt.Sprintf("0x%02X", defaults.T3B),
		fmt.Sprintf("0x%02X", defaults.T4A),
	}

	cmd := &cobra.Command{
		Use:   "delta <capture-A> <capture-B>",
		Short: "Estimate the counter offset between two captures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := parseSyncTags(sync)
			if err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			captures, err := a.load(cmd.Context(), p, args)
			if err != nil {
				return err
			}

			offsets, err := delta.Estimate(captures[0].Entries, captures[1].Entries, tags, p.format.Modulus())
			if err != nil {
				return err
			}
			if len(offsets) == 0 {
				a.logger.Warn("no synchronization points found", zap.Strings("captures", args))
			}

			digits := counterDigits(p.format.Modulus())
			for _, o := range offsets {
				a.logger.Debug("offset estimate", zap.Float64("delta", o.Delta))
				fmt.Fprintf(a.stdout, "Counter delta A-->B is: 0x%0*x\n", digits, o.Display)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sync, "sync", sync, "sync tags 1a,2b,3b,4a")
	return cmd
}

// counterDigits returns the hex digits needed for a counter modulus.
func counterDigits(modulus uint64) int {
	digits := 0
	for m := modulus - 1; m > 0; m >>= 4 {
		digits++
	}
	return digits
}

func (a *app) definesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defines",
		Short: "Print the tag table as C #define lines",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			format, err := a.cfg.RecordFormat()
			if err != nil {
				return err
			}
			table, err := a.cfg.TagTable(format)
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.stdout, table.Defines())
			return err
		},
	}
}

func (a *app) openArchive() (*archive.Archive, error) {
	return archive.Open(archive.Config{Path: a.cfg.ArchiveDir, Logger: a.logger})
}

func (a *app) archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store and replay captures",
	}
	cmd.PersistentFlags().StringVar(&a.cfg.ArchiveDir, "dir", a.cfg.ArchiveDir, "archive directory")

	put := &cobra.Command{
		Use:   "put <capture>...",
		Short: "Import captures into the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			captures, err := a.load(cmd.Context(), p, args)
			if err != nil {
				return err
			}

			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, c := range captures {
				rec, err := store.Put(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s %s\n", rec.ID, rec.Name)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived captures",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			recs, err := store.List()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tRECORDS\tSTORED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Format, len(r.Codes), r.StoredAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Replay an archived capture as a timestamp report",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}

			// The archived format wins over --format.
			a.cfg.Format = rec.Format
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			c, err := rec.Replay(p.opts)
			if err != nil {
				return err
			}
			return a.report(p, c)
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove captures from the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, id := range args {
				if err := store.Delete(id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(put, list, show, remove)
	return cmd
}

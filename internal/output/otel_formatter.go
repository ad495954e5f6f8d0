package output

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/attributes"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
	"github.com/ayushev/micro-man-tools/internal/intervals"
	tracing "github.com/ayushev/micro-man-tools/internal/otel"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
	"github.com/ayushev/micro-man-tools/internal/timesync"
)

// OTELOptions configure span export.
type OTELOptions struct {
	Attributes *attributes.Evaluator
	TraceID    *attributes.TraceIDEvaluator
	ParentID   *attributes.ParentIDEvaluator
	Filter     *attributes.Filter
	Logger     *zap.Logger
}

// OTELFormatter formats one capture as OpenTelemetry spans.
//
// The capture becomes a root span starting at the converter origin. Each
// closed interval becomes a child span, Event and Unknown entries become
// span events on the root, and Data entries become root attributes.
type OTELFormatter struct {
	tracer trace.Tracer
	info   attributes.CaptureInfo
	conv   *timesync.Converter
	opts   OTELOptions

	ctx      context.Context
	root     trace.Span
	last     uint64
	data     map[string][]string
	warnings []attribute.KeyValue
}

// NewOTELFormatter creates a span formatter for one capture.
func NewOTELFormatter(tracer trace.Tracer, info attributes.CaptureInfo, conv *timesync.Converter, opts OTELOptions) *OTELFormatter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &OTELFormatter{
		tracer: tracer,
		info:   info,
		conv:   conv,
		opts:   opts,
		data:   make(map[string][]string),
	}
}

// parentContext resolves the trace and parent span IDs of the root span.
func (f *OTELFormatter) parentContext() (context.Context, error) {
	ctx := context.Background()

	traceID, traceWarnings, err := f.opts.TraceID.EvaluateAndValidate(f.info)
	if err != nil {
		return nil, err
	}
	f.warnings = append(f.warnings, traceWarnings...)

	parentID, parentWarnings, err := f.opts.ParentID.EvaluateAndValidate(f.info)
	if err != nil {
		return nil, err
	}
	f.warnings = append(f.warnings, parentWarnings...)

	if !traceID.IsValid() {
		if parentID.IsValid() {
			f.opts.Logger.Warn("parent span ID ignored without a trace ID",
				zap.String("capture", f.info.Name),
				zap.String("parent_id", parentID.String()),
			)
		}
		return ctx, nil
	}

	if !parentID.IsValid() {
		return tracing.ContextWithTraceID(ctx, traceID), nil
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     parentID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, parent), nil
}

// start opens the capture root span on first use.
func (f *OTELFormatter) start() error {
	if f.root != nil {
		return nil
	}

	ctx, err := f.parentContext()
	if err != nil {
		return fmt.Errorf("capture %s: %w", f.info.Name, err)
	}

	f.ctx, f.root = f.tracer.Start(ctx, "capture "+f.info.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(f.conv.Origin()),
		trace.WithAttributes(
			attribute.String("microman.capture", f.info.Name),
			attribute.String("microman.format", f.info.Format),
		),
	)
	return nil
}

// HandleEntry turns one entry into spans, span events or attributes.
func (f *OTELFormatter) HandleEntry(ev eventprocessor.Event) error {
	if err := f.start(); err != nil {
		return err
	}

	if ev.Class.Kind.TimeBased() {
		f.last = max(f.last, ev.Relative)
	}

	ok, err := f.opts.Filter.Match(f.info, ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	switch {
	case ev.Outcome == intervals.Closed:
		f.intervalSpan(ev)
	case ev.Outcome == intervals.Unmatched:
		f.root.AddEvent("unmatched stop",
			trace.WithTimestamp(f.conv.TicksToWallClock(ev.Relative)),
			trace.WithAttributes(f.entryAttributes(ev)...),
		)
	case ev.Class.Kind == tagclass.Event || ev.Class.Kind == tagclass.Unknown:
		f.root.AddEvent(ev.Class.Name,
			trace.WithTimestamp(f.conv.TicksToWallClock(ev.Relative)),
			trace.WithAttributes(append(f.entryAttributes(ev), f.opts.Attributes.Evaluate(f.info, ev)...)...),
		)
	case ev.Class.Kind == tagclass.Data:
		f.data[ev.Class.Name] = append(f.data[ev.Class.Name], fmt.Sprintf("0x%X", ev.Payload))
	}

	return nil
}

// intervalSpan exports the interval closed by ev.
func (f *OTELFormatter) intervalSpan(ev eventprocessor.Event) {
	iv := ev.Interval
	ticks := iv.Ticks()

	var begin uint64
	if ev.Relative > ticks {
		begin = ev.Relative - ticks
	}

	_, span := f.tracer.Start(f.ctx, iv.Key,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(f.conv.TicksToWallClock(begin)),
	)

	//nolint:gosec // counters and tick counts fit in int64
	span.SetAttributes(
		attribute.String("microman.interval.key", iv.Key),
		attribute.Int("microman.interval.begin_index", iv.Begin),
		attribute.Int("microman.interval.end_index", iv.End),
		attribute.Int64("microman.interval.begin_counter", int64(iv.BeginCounter)),
		attribute.Int64("microman.interval.end_counter", int64(iv.EndCounter)),
		attribute.Int64("microman.interval.ticks", int64(ticks)),
		attribute.Int64("microman.interval.duration_ns", int64(f.conv.Duration(ticks))),
		attribute.String("microman.tag.name", ev.Class.Name),
	)

	if custom := f.opts.Attributes.Evaluate(f.info, ev); len(custom) > 0 {
		span.SetAttributes(custom...)
	}

	span.End(trace.WithTimestamp(f.conv.TicksToWallClock(ev.Relative)))
}

func (f *OTELFormatter) entryAttributes(ev eventprocessor.Event) []attribute.KeyValue {
	//nolint:gosec // counters fit in int64
	return []attribute.KeyValue{
		attribute.Int("microman.index", ev.Index),
		attribute.Int("microman.tag", int(ev.Entry.Tag)),
		attribute.String("microman.tag.name", ev.Class.Name),
		attribute.String("microman.tag.kind", ev.Class.Kind.String()),
		attribute.Int64("microman.counter", int64(ev.Entry.Counter)),
	}
}

// Finish sets the capture summary on the root span and ends it at the last
// time-based entry.
func (f *OTELFormatter) Finish(sum eventprocessor.Summary) error {
	if err := f.start(); err != nil {
		return err
	}

	f.root.SetAttributes(
		attribute.Int("microman.entries", sum.Entries),
		attribute.Int("microman.intervals", sum.Intervals),
		attribute.IntSlice("microman.unmatched_stops", sum.Unmatched),
		attribute.IntSlice("microman.open_starts", sum.Open),
		attribute.Int("microman.import.failed", len(sum.Report.Failed)),
		attribute.Int("microman.import.noise", sum.Report.Noise),
		attribute.Int("microman.import.wraps", sum.Report.Wraps),
	)

	names := make([]string, 0, len(f.data))
	for name := range f.data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f.root.SetAttributes(attribute.StringSlice("microman.data."+name, f.data[name]))
	}

	if len(f.warnings) > 0 {
		f.root.SetAttributes(f.warnings...)
		f.opts.Logger.Warn("invalid id expression result", zap.String("capture", f.info.Name), zap.Int("warnings", len(f.warnings)))
	}

	if len(sum.Unmatched) > 0 {
		f.root.SetStatus(codes.Error, fmt.Sprintf("%d unmatched stop(s)", len(sum.Unmatched)))
	}

	f.root.End(trace.WithTimestamp(f.conv.TicksToWallClock(f.last)))
	return nil
}

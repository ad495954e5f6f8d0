package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/ayushev/micro-man-tools/internal/attributes"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
	"github.com/ayushev/micro-man-tools/internal/intervals"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
	"github.com/ayushev/micro-man-tools/internal/timesync"
)

const (
	nameColumnWidth = 40
	// timeColumnWidth matches "%8.2f ms".
	timeColumnWidth = 11
)

// TextOptions tune the text report.
type TextOptions struct {
	// TagDigits is the number of hex digits used for tags. Defaults to 2.
	TagDigits int
	// KeyWidth is the width the pairing key is centered in. Defaults to the
	// key length.
	KeyWidth int
	// ScaledDurations prints interval durations in the largest fitting
	// unit instead of milliseconds.
	ScaledDurations bool
	// Filter restricts the printed entries. Nil prints everything.
	Filter *attributes.Filter
}

// TextFormatter writes one line per entry followed by a matching summary.
type TextFormatter struct {
	w    io.Writer
	info attributes.CaptureInfo
	conv *timesync.Converter
	opts TextOptions
}

// NewTextFormatter creates a text report for one capture.
func NewTextFormatter(w io.Writer, info attributes.CaptureInfo, conv *timesync.Converter, opts TextOptions) *TextFormatter {
	if opts.TagDigits <= 0 {
		opts.TagDigits = 2
	}
	return &TextFormatter{w: w, info: info, conv: conv, opts: opts}
}

// TagDigits returns the number of hex digits a format's tags print with.
func TagDigits(f record.Format) int {
	return (f.TagBits() + 3) / 4
}

// KeyWidth returns the widest display name in a tag table.
func KeyWidth(t tagclass.Table) int {
	width := 0
	for _, name := range t {
		width = max(width, len(name))
	}
	return width
}

// HandleEntry prints one entry.
func (f *TextFormatter) HandleEntry(ev eventprocessor.Event) error {
	ok, err := f.opts.Filter.Match(f.info, ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	label := fmt.Sprintf("%s (0x%0*X)", ev.Class.Name, f.opts.TagDigits, ev.Entry.Tag)

	var line string
	switch {
	case ev.Class.Kind.TimeBased():
		line = fmt.Sprintf("%2d: %s: %-*s %s", ev.Index, f.quantity(f.conv.Milliseconds(ev.Relative)), nameColumnWidth, label, f.match(ev))
	case ev.Class.Kind == tagclass.Data:
		line = fmt.Sprintf("%2d: %*s: %-*s 0x%X", ev.Index, timeColumnWidth, "data", nameColumnWidth, label, ev.Payload)
	default:
		line = fmt.Sprintf("%2d: %*s: %-*s 0x%X", ev.Index, timeColumnWidth, "reserved", nameColumnWidth, label, ev.Payload)
	}

	_, err = fmt.Fprintln(f.w, strings.TrimRight(line, " "))
	return err
}

// match renders the interval closed by ev, if any.
func (f *TextFormatter) match(ev eventprocessor.Event) string {
	switch ev.Outcome {
	case intervals.Closed:
		iv := ev.Interval
		width := max(f.opts.KeyWidth, len(iv.Key))
		return fmt.Sprintf("[%2d]---(%s)--->[%2d] %s", iv.Begin, center(iv.Key, width), iv.End, f.duration(iv.Ticks()))
	case intervals.Unmatched:
		return "<unmatched>"
	default:
		return ""
	}
}

func (f *TextFormatter) duration(ticks uint64) string {
	if f.opts.ScaledDurations {
		return f.quantity(f.conv.Scaled(ticks))
	}
	return f.quantity(f.conv.Milliseconds(ticks))
}

func (f *TextFormatter) quantity(q timesync.Quantity) string {
	return fmt.Sprintf("%8.*f %s", q.Precision, q.Value, q.Unit)
}

// Finish prints the import and matching summary.
func (f *TextFormatter) Finish(sum eventprocessor.Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Imported %d record(s) from %s, %d interval(s).\n", sum.Entries, sum.Capture, sum.Intervals)
	if failed := sum.Report.FailedLines(); len(failed) > 0 {
		fmt.Fprintf(&b, "Failed line(s): %s\n", joinInts(failed))
	}
	if sum.Report.Wraps > 0 {
		fmt.Fprintf(&b, "Counter wrap(s): %d\n", sum.Report.Wraps)
	}
	if len(sum.Gaps) > 0 {
		fmt.Fprintf(&b, "Counter gap(s) longer than one wrap: %s\n", joinInts(sum.Gaps))
	}
	if len(sum.Unmatched) > 0 {
		fmt.Fprintf(&b, "Unmatched stop(s): %s\n", joinInts(sum.Unmatched))
	}
	if len(sum.Open) > 0 {
		fmt.Fprintf(&b, "Open start(s): %s\n", joinInts(sum.Open))
	}

	_, err := io.WriteString(f.w, b.String())
	return err
}

// center pads s on both sides to width, extra space going right.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

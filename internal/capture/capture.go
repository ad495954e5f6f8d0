package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/metrics"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/timesync"
)

const maxLineLength = 1024 * 1024

var (
	// ErrUnreadable wraps failures to open or read capture input.
	ErrUnreadable = errors.New("capture unreadable")
	// ErrEmptyInput is returned by RequireEntries when no record was imported.
	ErrEmptyInput = errors.New("no valid records")
)

// Options configure an import.
type Options struct {
	Format record.Format
	// Exempt reports tags whose counter field carries a data payload
	// instead of ticks. Exempt entries keep their raw value and do not take
	// part in unwrapping. Nil exempts nothing.
	Exempt  func(tag uint16) bool
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// LineError is a record line that failed to decode.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// ImportReport summarizes an import.
type ImportReport struct {
	// Lines is the number of lines read.
	Lines int
	// Noise counts skipped comment, empty and wrong-length lines.
	Noise int
	// Imported counts decoded records.
	Imported int
	// Failed lists record lines that did not decode.
	Failed []LineError
	// Wraps counts counter overflows corrected while unwrapping.
	Wraps int
}

// FailedLines returns the line numbers of Failed.
func (r ImportReport) FailedLines() []int {
	lines := make([]int, len(r.Failed))
	for i, f := range r.Failed {
		lines[i] = f.Line
	}
	return lines
}

// Capture is an imported capture.
type Capture struct {
	Name    string
	Format  record.Format
	Entries []record.Entry
	Report  ImportReport
}

// Empty reports whether no record was imported.
func (c *Capture) Empty() bool {
	return len(c.Entries) == 0
}

// RequireEntries returns ErrEmptyInput if the capture holds no record.
func (c *Capture) RequireEntries() error {
	if c.Empty() {
		return fmt.Errorf("%s: %w (%d lines read, %d failed)", c.Name, ErrEmptyInput, c.Report.Lines, len(c.Report.Failed))
	}
	return nil
}

// Codes re-encodes the entries in the capture's format. Corrected counters
// are reduced to the field width, so the codes equal the imported lines.
func (c *Capture) Codes() []string {
	codes := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		codes[i] = c.Format.Encode(e)
	}
	return codes
}

// IsNoise reports whether a trimmed line is not a record candidate.
func IsNoise(line string) bool {
	return len(line) != record.LineLength || line[0] == '#'
}

// Decoder imports record lines one at a time, keeping the unwrapping state
// and the import report of one capture.
type Decoder struct {
	opts      Options
	unwrapper *timesync.Unwrapper
	report    ImportReport
	logger    *zap.Logger
}

// NewDecoder creates a decoder for one capture.
func NewDecoder(name string, opts Options) (*Decoder, error) {
	if opts.Format == nil {
		return nil, errors.New("capture: no record format configured")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Decoder{
		opts:      opts,
		unwrapper: timesync.NewUnwrapper(opts.Format.Modulus()),
		logger:    logger.With(zap.String("capture", name), zap.String("format", opts.Format.Name())),
	}, nil
}

// Decode consumes one raw line. ok is false for noise and for lines that
// failed to decode; both are accounted in the report.
func (d *Decoder) Decode(raw string) (record.Entry, bool) {
	d.report.Lines++
	line := strings.TrimSpace(raw)

	if IsNoise(line) {
		d.report.Noise++
		return record.Entry{}, false
	}

	entry, err := d.opts.Format.Decode(line)
	if err != nil {
		d.report.Failed = append(d.report.Failed, LineError{Line: d.report.Lines, Text: line, Err: err})
		d.logger.Debug("skipping record", zap.Int("line", d.report.Lines), zap.Error(err))
		return record.Entry{}, false
	}

	if d.opts.Exempt == nil || !d.opts.Exempt(entry.Tag) {
		entry.Counter = d.unwrapper.Next(entry.Counter)
	}

	d.report.Imported++
	return entry, true
}

// Report returns the import report so far.
func (d *Decoder) Report() ImportReport {
	r := d.report
	r.Wraps = d.unwrapper.Wraps()
	return r
}

// Close records the final report in metrics and logs it.
func (d *Decoder) Close() ImportReport {
	r := d.Report()
	d.opts.Metrics.ObserveImport(d.opts.Format.Name(), r.Imported, len(r.Failed), r.Noise, r.Wraps)
	d.logger.Info("capture imported",
		zap.Int("lines", r.Lines),
		zap.Int("records", r.Imported),
		zap.Int("failed", len(r.Failed)),
		zap.Int("wraps", r.Wraps),
	)
	return r
}

// NewScanner returns a line scanner accepting long noise lines.
func NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	return scanner
}

// Read imports a capture from r.
func Read(name string, r io.Reader, opts Options) (*Capture, error) {
	d, err := NewDecoder(name, opts)
	if err != nil {
		return nil, err
	}

	c := &Capture{Name: name, Format: opts.Format}

	scanner := NewScanner(r)
	for scanner.Scan() {
		if entry, ok := d.Decode(scanner.Text()); ok {
			c.Entries = append(c.Entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, name, err)
	}

	c.Report = d.Close()
	return c, nil
}

// Load imports the capture file at path.
func Load(path string, opts Options) (*Capture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // Read-only file, defer cleanup
	}()

	return Read(filepath.Base(path), file, opts)
}

// Package eventstream reads a capture from a pipe and feeds each decoded
// entry to the pipeline as soon as its line is read.
package eventstream

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/capture"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
)

// Stream reads record lines from a reader and dispatches them to a processor.
type Stream struct {
	name   string
	reader io.Reader
	opts   capture.Options
	proc   *eventprocessor.Processor
	logger *zap.Logger
}

// New creates a stream named name over r.
func New(name string, r io.Reader, opts capture.Options, proc *eventprocessor.Processor) *Stream {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		name:   name,
		reader: r,
		opts:   opts,
		proc:   proc,
		logger: logger,
	}
}

type line struct {
	text string
	err  error
}

// readLines scans lines in a goroutine so Run can stop on cancellation
// while a read is blocked. The channel is closed at end of input.
func (s *Stream) readLines(ctx context.Context) <-chan line {
	lines := make(chan line)
	go func() {
		defer close(lines)
		scanner := capture.NewScanner(s.reader)
		for scanner.Scan() {
			select {
			case lines <- line{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return lines
}

// Run processes lines until the input ends or ctx is cancelled, then
// finishes the session. Cancellation is not an error: the summary covers
// everything read so far.
func (s *Stream) Run(ctx context.Context) (eventprocessor.Summary, error) {
	decoder, err := capture.NewDecoder(s.name, s.opts)
	if err != nil {
		return eventprocessor.Summary{}, err
	}
	session := s.proc.Begin(s.name, s.opts.Format)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := s.readLines(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stream stopped", zap.String("capture", s.name))
			return session.Finish(decoder.Close())

		case l, ok := <-lines:
			if !ok {
				return session.Finish(decoder.Close())
			}
			if l.err != nil {
				return eventprocessor.Summary{}, fmt.Errorf("%w: %s: %v", capture.ErrUnreadable, s.name, l.err)
			}

			entry, ok := decoder.Decode(l.text)
			if !ok {
				continue
			}
			if err := session.Feed(entry); err != nil {
				return eventprocessor.Summary{}, err
			}
		}
	}
}

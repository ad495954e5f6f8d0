package eventprocessor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/capture"
	"github.com/ayushev/micro-man-tools/internal/intervals"
	"github.com/ayushev/micro-man-tools/internal/metrics"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

// Event is one classified entry of a capture.
type Event struct {
	Index int
	Entry record.Entry
	Class tagclass.Classification
	// Relative is the distance in ticks from the first time-based entry.
	// Zero for entries that carry data instead of ticks.
	Relative uint64
	// Payload is the counter field as the device sent it, without the
	// unwrap offset. Only set for entries that are not time-based.
	Payload uint64
	Outcome intervals.Outcome
	// Interval is set when this entry closed an interval.
	Interval *intervals.Interval
}

// Summary describes a processed capture.
type Summary struct {
	Capture   string
	Format    string
	Entries   int
	Intervals int
	// Origin is the counter of the first time-based entry.
	Origin    uint64
	Unmatched []int
	Open      []int
	// Gaps lists time-based entries that lie a full counter period or more
	// after the previous one. One real wrap never does that, so a payload
	// was unwrapped as a counter.
	Gaps   []int
	Report capture.ImportReport
}

// EntryHandler consumes processed entries.
type EntryHandler interface {
	HandleEntry(ev Event) error
	Finish(sum Summary) error
}

// Processor coordinates classification, matching and dispatch.
type Processor struct {
	classifier tagclass.Classifier
	handlers   []EntryHandler
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

// NewProcessor creates a new processor. logger and rec may be nil.
func NewProcessor(classifier tagclass.Classifier, logger *zap.Logger, rec *metrics.Recorder, handlers ...EntryHandler) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		classifier: classifier,
		handlers:   handlers,
		logger:     logger,
		metrics:    rec,
	}
}

// Process runs the pipeline over one capture. Each call uses a fresh
// session, so a processor can be reused across captures.
func (p *Processor) Process(c *capture.Capture) (Summary, error) {
	s := p.Begin(c.Name, c.Format)
	for _, entry := range c.Entries {
		if err := s.Feed(entry); err != nil {
			return s.sum, err
		}
	}
	return s.Finish(c.Report)
}

// Session processes the entries of one capture as they arrive.
type Session struct {
	p         *Processor
	matcher   *intervals.Matcher
	sum       Summary
	modulus   uint64
	originSet bool
	// last is the counter of the previous time-based entry, if timed.
	last  uint64
	timed bool
}

// Begin starts a session for the named capture.
func (p *Processor) Begin(name string, format record.Format) *Session {
	return &Session{
		p:       p,
		matcher: intervals.NewMatcher(),
		sum:     Summary{Capture: name, Format: format.Name()},
		modulus: format.Modulus(),
	}
}

// Feed classifies, matches and dispatches the next entry.
func (s *Session) Feed(entry record.Entry) error {
	i := s.sum.Entries
	s.sum.Entries++
	class := s.p.classifier.Classify(entry.Tag)

	// The first time-based tag defines the origin
	if class.Kind.TimeBased() && !s.originSet {
		s.sum.Origin = entry.Counter
		s.originSet = true
	}

	ev := Event{Index: i, Entry: entry, Class: class}
	switch {
	case !class.Kind.TimeBased():
		ev.Payload = entry.Counter % s.modulus
	case entry.Counter >= s.sum.Origin:
		ev.Relative = entry.Counter - s.sum.Origin
		if s.timed && entry.Counter >= s.last && entry.Counter-s.last >= s.modulus {
			s.sum.Gaps = append(s.sum.Gaps, i)
			s.p.logger.Warn("counter gap exceeds one wrap, a data payload was probably unwrapped as ticks",
				zap.String("capture", s.sum.Capture),
				zap.Int("index", i),
			)
		}
		s.last, s.timed = entry.Counter, true
	}

	iv, outcome := s.matcher.Observe(i, class, entry.Counter)
	ev.Outcome = outcome
	switch outcome {
	case intervals.Closed:
		ev.Interval = &iv
		s.sum.Intervals++
	case intervals.Unmatched:
		s.p.logger.Warn("stop without open start",
			zap.String("capture", s.sum.Capture),
			zap.Int("index", i),
			zap.String("name", class.Name),
		)
	}

	return s.p.dispatch(ev)
}

// Finish completes the session and hands the summary to every handler.
func (s *Session) Finish(report capture.ImportReport) (Summary, error) {
	s.sum.Report = report
	s.sum.Unmatched = s.matcher.Unmatched()
	s.sum.Open = s.matcher.Open()
	s.p.metrics.ObserveMatch(s.sum.Intervals, len(s.sum.Unmatched), len(s.sum.Open))

	for _, h := range s.p.handlers {
		if err := h.Finish(s.sum); err != nil {
			return s.sum, fmt.Errorf("finishing %s: %w", s.sum.Capture, err)
		}
	}

	return s.sum, nil
}

// dispatch delivers an event to every handler.
func (p *Processor) dispatch(ev Event) error {
	for _, h := range p.handlers {
		if err := h.HandleEntry(ev); err != nil {
			return fmt.Errorf("handling entry %d: %w", ev.Index, err)
		}
	}
	return nil
}

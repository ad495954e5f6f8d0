package intervals

import (
	"sort"

	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

// Interval is a matched Start/Stop pair.
type Interval struct {
	Begin        int
	End          int
	Key          string
	BeginCounter uint64
	EndCounter   uint64
}

// Ticks returns the elapsed counter ticks between begin and end.
func (iv Interval) Ticks() uint64 {
	if iv.EndCounter < iv.BeginCounter {
		return 0
	}
	return iv.EndCounter - iv.BeginCounter
}

// Outcome describes what Observe did with an entry.
type Outcome int

// Observe outcomes.
const (
	// Ignored entries never participate in matching.
	Ignored Outcome = iota
	// Opened means a Start was pushed.
	Opened
	// Closed means a Stop closed an interval.
	Closed
	// Unmatched means a Stop found no open Start.
	Unmatched
)

type openStart struct {
	index   int
	counter uint64
}

// Matcher pairs entries incrementally, in capture order.
type Matcher struct {
	open      map[string][]openStart
	unmatched []int
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		open: make(map[string][]openStart),
	}
}

// Observe feeds the entry at index with its classification and corrected
// counter. The returned interval is only meaningful when the outcome is
// Closed.
func (m *Matcher) Observe(index int, class tagclass.Classification, counter uint64) (Interval, Outcome) {
	switch class.Kind {
	case tagclass.Start:
		m.open[class.Key] = append(m.open[class.Key], openStart{index: index, counter: counter})
		return Interval{}, Opened

	case tagclass.Stop:
		stack := m.open[class.Key]
		if len(stack) == 0 {
			m.unmatched = append(m.unmatched, index)
			return Interval{}, Unmatched
		}

		top := stack[len(stack)-1]
		if len(stack) == 1 {
			delete(m.open, class.Key)
		} else {
			m.open[class.Key] = stack[:len(stack)-1]
		}

		return Interval{
			Begin:        top.index,
			End:          index,
			Key:          class.Key,
			BeginCounter: top.counter,
			EndCounter:   counter,
		}, Closed

	default:
		return Interval{}, Ignored
	}
}

// Unmatched returns the indices of Stop entries that had no open Start.
func (m *Matcher) Unmatched() []int {
	return append([]int(nil), m.unmatched...)
}

// Open returns the indices of Start entries that were never closed, in
// ascending order.
func (m *Matcher) Open() []int {
	var open []int
	for _, stack := range m.open {
		for _, s := range stack {
			open = append(open, s.index)
		}
	}
	sort.Ints(open)
	return open
}

// Mark is one classified entry as seen by Match.
type Mark struct {
	Class   tagclass.Classification
	Counter uint64
}

// Result is the outcome of matching a whole sequence.
type Result struct {
	// Intervals in the order their Stop was seen.
	Intervals []Interval
	Unmatched []int
	Open      []int
}

// Match pairs a whole classified sequence. The index of each mark is its
// position in marks.
func Match(marks []Mark) Result {
	m := NewMatcher()

	var res Result
	for i, mark := range marks {
		if iv, outcome := m.Observe(i, mark.Class, mark.Counter); outcome == Closed {
			res.Intervals = append(res.Intervals, iv)
		}
	}

	res.Unmatched = m.Unmatched()
	res.Open = m.Open()
	return res
}

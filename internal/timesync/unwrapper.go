package timesync

// Unwrapper turns raw counter values, in encounter order, into a
// non-decreasing sequence.
//
// It assumes at most one overflow between two consecutive values. Longer
// gaps between samples are silently mis-corrected; the heuristic is greedy
// and never revisits earlier values.
type Unwrapper struct {
	modulus uint64
	offset  uint64
	prev    uint64
	started bool
	wraps   int
}

// NewUnwrapper creates an unwrapper for a counter that overflows at modulus.
func NewUnwrapper(modulus uint64) *Unwrapper {
	return &Unwrapper{modulus: modulus}
}

// Next returns the corrected value for the next raw counter.
func (u *Unwrapper) Next(raw uint64) uint64 {
	if u.started && raw+u.offset < u.prev {
		u.offset += u.modulus
		u.wraps++
	}

	corrected := raw + u.offset
	u.prev = corrected
	u.started = true
	return corrected
}

// Offset returns the accumulated wrap offset.
func (u *Unwrapper) Offset() uint64 {
	return u.offset
}

// Wraps returns how many overflows were detected so far.
func (u *Unwrapper) Wraps() int {
	return u.wraps
}

// Reset forgets all state.
func (u *Unwrapper) Reset() {
	u.offset, u.prev, u.started, u.wraps = 0, 0, false, 0
}

// Unwrap corrects a whole sequence of raw counters.
func Unwrap(raws []uint64, modulus uint64) []uint64 {
	u := NewUnwrapper(modulus)
	out := make([]uint64, len(raws))
	for i, raw := range raws {
		out[i] = u.Next(raw)
	}
	return out
}

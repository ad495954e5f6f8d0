// Package delta estimates the counter offset between two captures taken on
// different devices.
//
// Both devices run a four-way handshake and stamp each leg:
//
//	A                      B
//	1a ----- request ----> 2b
//	4a <---- reply ------- 3b
//
// Assuming equal latency in both directions, the offset of B's counter
// relative to A's is
//
//	delta = c2b - (c4a - c1a - c3b + c2b)/2 - c1a
//
// i.e. the same estimate NTP uses for clock offsets.
package delta

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ayushev/micro-man-tools/internal/record"
)

// ErrMismatchedSyncPointCount is returned when the four sync tags do not
// occur equally often.
var ErrMismatchedSyncPointCount = errors.New("mismatching number of synchronization points")

// SyncTags selects the four handshake legs. T1A and T4A are looked up in
// capture A, T2B and T3B in capture B.
type SyncTags struct {
	T1A uint16
	T2B uint16
	T3B uint16
	T4A uint16
}

// DefaultSyncTags are the tags the timestamp instrumentation reserves for
// synchronization.
var DefaultSyncTags = SyncTags{T1A: 0x02, T2B: 0x03, T3B: 0x04, T4A: 0x05}

// SyncPointSet holds the counters of each handshake leg, zipped by
// occurrence.
type SyncPointSet struct {
	C1A []uint64
	C2B []uint64
	C3B []uint64
	C4A []uint64
}

// Len returns the number of complete handshakes.
func (s SyncPointSet) Len() int {
	return len(s.C1A)
}

// Offset is the estimated clock offset for one handshake.
type Offset struct {
	// Delta is the exact estimate in ticks; it may be negative or fractional.
	Delta float64
	// Display is Delta truncated to an integer and reduced into the counter
	// field, so it can be printed as a counter value.
	Display uint64
}

func countersOf(entries []record.Entry, tag uint16) []uint64 {
	var out []uint64
	for _, e := range entries {
		if e.Tag == tag {
			out = append(out, e.Counter)
		}
	}
	return out
}

// Collect extracts the sync points of both captures.
func Collect(a, b []record.Entry, tags SyncTags) (SyncPointSet, error) {
	set := SyncPointSet{
		C1A: countersOf(a, tags.T1A),
		C2B: countersOf(b, tags.T2B),
		C3B: countersOf(b, tags.T3B),
		C4A: countersOf(a, tags.T4A),
	}

	n := len(set.C1A)
	if len(set.C2B) != n || len(set.C3B) != n || len(set.C4A) != n {
		return SyncPointSet{}, fmt.Errorf("%w: 1a=%d 2b=%d 3b=%d 4a=%d",
			ErrMismatchedSyncPointCount, len(set.C1A), len(set.C2B), len(set.C3B), len(set.C4A))
	}
	return set, nil
}

// OffsetAt computes the offset of handshake i.
//
// The estimate is computed on integers as
// 2*delta = (c2b - c1a) + (c3b - c4a), so counters beyond 2^53 stay exact.
func (s SyncPointSet) OffsetAt(i int, modulus uint64) Offset {
	twice := new(big.Int).Sub(bigCounter(s.C2B[i]), bigCounter(s.C1A[i]))
	twice.Add(twice, bigCounter(s.C3B[i]))
	twice.Sub(twice, bigCounter(s.C4A[i]))

	delta, _ := new(big.Float).Quo(new(big.Float).SetInt(twice), big.NewFloat(2)).Float64()
	return Offset{Delta: delta, Display: reduce(twice, modulus)}
}

func bigCounter(c uint64) *big.Int {
	return new(big.Int).SetUint64(c)
}

// reduce halves twice, truncating toward zero, and returns the
// non-negative residue modulo modulus.
func reduce(twice *big.Int, modulus uint64) uint64 {
	if modulus == 0 {
		return 0
	}
	truncated := new(big.Int).Quo(twice, big.NewInt(2))
	return truncated.Mod(truncated, bigCounter(modulus)).Uint64()
}

// Estimate returns one offset per handshake. modulus is the counter field
// modulus used for the display value.
func Estimate(a, b []record.Entry, tags SyncTags, modulus uint64) ([]Offset, error) {
	set, err := Collect(a, b, tags)
	if err != nil {
		return nil, err
	}

	offsets := make([]Offset, set.Len())
	for i := range offsets {
		offsets[i] = set.OffsetAt(i, modulus)
	}
	return offsets, nil
}

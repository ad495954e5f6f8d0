package timesync

import (
	"fmt"
	"math"
	"time"
)

// DefaultTickRate is the counter frequency assumed when none is configured:
// one tick every 10 microseconds.
const DefaultTickRate = 100_000.0

// Converter handles conversion from tick counts to time.
type Converter struct {
	tickRate float64 // ticks per second
	origin   time.Time
}

// NewConverter creates a converter for a counter running at tickRate ticks
// per second. Counter value 0 maps to origin.
func NewConverter(tickRate float64, origin time.Time) (*Converter, error) {
	if tickRate <= 0 || math.IsNaN(tickRate) || math.IsInf(tickRate, 0) {
		return nil, fmt.Errorf("tick rate must be a positive number, got %v", tickRate)
	}

	return &Converter{
		tickRate: tickRate,
		origin:   origin,
	}, nil
}

// TickRate returns the configured counter frequency in Hz.
func (c *Converter) TickRate() float64 {
	return c.tickRate
}

// Origin returns the wall-clock instant of counter value 0.
func (c *Converter) Origin() time.Time {
	return c.origin
}

// Duration converts a tick count to a duration, rounded to the nanosecond.
func (c *Converter) Duration(ticks uint64) time.Duration {
	return time.Duration(math.Round(float64(ticks) / c.tickRate * float64(time.Second)))
}

// TicksToWallClock converts a corrected counter value to wall-clock time.
func (c *Converter) TicksToWallClock(ticks uint64) time.Time {
	return c.origin.Add(c.Duration(ticks))
}

// Quantity is a tick count expressed in a human readable unit.
type Quantity struct {
	Value     float64
	Unit      string
	Precision int
}

// String formats the quantity with its precision and unit.
func (q Quantity) String() string {
	return fmt.Sprintf("%.*f %s", q.Precision, q.Value, q.Unit)
}

// Milliseconds expresses ticks in milliseconds with two decimals, the
// layout used by the timestamp reports.
func (c *Converter) Milliseconds(ticks uint64) Quantity {
	return Quantity{
		Value:     float64(ticks) / c.tickRate * 1e3,
		Unit:      "ms",
		Precision: 2,
	}
}

// Scaled expresses ticks in the largest unit that keeps the value >= 1.
func (c *Converter) Scaled(ticks uint64) Quantity {
	seconds := float64(ticks) / c.tickRate

	switch {
	case seconds >= 1:
		return Quantity{Value: seconds, Unit: "s", Precision: 3}
	case seconds >= 1e-3:
		return Quantity{Value: seconds * 1e3, Unit: "ms", Precision: 3}
	case seconds >= 1e-6:
		return Quantity{Value: seconds * 1e6, Unit: "us", Precision: 3}
	default:
		return Quantity{Value: seconds * 1e9, Unit: "ns", Precision: 1}
	}
}

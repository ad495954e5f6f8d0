// Package timesync reconstructs a monotonic time base from a wrapping
// hardware tick counter and converts ticks to wall-clock durations.
//
// Firmware stamps events with a free running counter that overflows every
// 2^24 (timestamp format) or 2^32 (microtag format) ticks. The Unwrapper
// restores a monotonic counter by assuming that a backward jump between two
// consecutive records means exactly one overflow. The Converter turns tick
// counts into durations and wall-clock instants given the counter frequency.
package timesync

// Package record decodes and encodes the fixed-width text records emitted by
// instrumented firmware.
//
// Every record is a single line of exactly eight characters carrying a tag
// (what happened) and a counter (when it happened, in hardware ticks). Two
// mutually exclusive wire formats exist:
//
//	Hex     TTCCCCCC   2 hex digits tag, 6 hex digits counter (24-bit)
//	Packed  8 chars    base64 alphabet, 48 bits: 32-bit counter, 16-bit tag
//
// The format is chosen by the caller; records are never auto-detected.
// Decoding is strict: any malformed line is reported as ErrMalformedRecord.
// Lenient bulk import lives in the capture package.
package record

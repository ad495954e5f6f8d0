// Package capture imports capture files: text dumps of the records a target
// flushed over its debug UART.
//
// Import is lenient. Empty lines, comment lines starting with '#' and lines
// that are not exactly eight characters long are noise and skipped silently.
// Eight character lines that fail to decode are skipped too, but recorded in
// the ImportReport with their line number so the caller can report them.
//
// Counters are unwrapped while importing, so the entries of a Capture carry
// corrected, monotonic counters.
//
// Two conditions are kept distinguishable for callers:
//   - ErrUnreadable: the file could not be opened or read
//   - ErrEmptyInput: the input was read but held no valid record
package capture

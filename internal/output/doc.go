// Package output provides handlers that turn processed capture entries into
// reports.
//
//   - TextFormatter: the line oriented timestamp report
//   - OTELFormatter: OpenTelemetry spans, one trace root per capture
//
// Both are eventprocessor.EntryHandler implementations and are created per
// capture. Tick conversion is delegated to timesync and expression
// evaluation to attributes.
package output

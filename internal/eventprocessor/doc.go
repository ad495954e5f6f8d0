// Package eventprocessor runs the analysis pipeline over an imported capture
// and routes every entry to output handlers.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│   capture.Capture (decoded, unwrapped)  │
//	└─────────────────┬───────────────────────┘
//	                  │
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │
//	│   - Classifies tags (tagclass)          │
//	│   - Pairs start/stop (intervals)        │
//	│   - Tracks the relative time origin     │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ Event ────→ EntryHandler.HandleEntry
//	          │                - one call per entry, in capture order
//	          │                - carries the interval it closed, if any
//	          │
//	          └──→ Summary ──→ EntryHandler.Finish
//	                           - unmatched stops, open starts
//
// Handlers are typically the formatters of the output package.
package eventprocessor

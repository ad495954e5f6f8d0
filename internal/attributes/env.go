package attributes

import (
	"os"
	"strings"

	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
)

// CaptureInfo identifies the capture an expression is evaluated for.
type CaptureInfo struct {
	Name    string
	Format  string
	Entries int
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	return parseEnviron(os.Environ())
}

func parseEnviron(kvs []string) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// entrySchema is the type-checking environment for entry expressions.
func entrySchema() map[string]any {
	return map[string]any{
		"tag":      0,
		"counter":  0,
		"name":     "",
		"key":      "",
		"kind":     "",
		"index":    0,
		"relative": 0,
		"ticks":    0,
		"capture":  "",
		"format":   "",
		"env":      map[string]string{},
	}
}

// captureSchema is the type-checking environment for capture expressions.
func captureSchema() map[string]any {
	return map[string]any{
		"capture": "",
		"format":  "",
		"entries": 0,
		"env":     map[string]string{},
	}
}

// EntryEnv builds the evaluation environment of one processed entry.
func EntryEnv(info CaptureInfo, ev eventprocessor.Event, environ map[string]string) map[string]any {
	if environ == nil {
		environ = map[string]string{}
	}
	// Data and reserved entries expose the payload the device sent.
	counter := ev.Entry.Counter
	if !ev.Class.Kind.TimeBased() {
		counter = ev.Payload
	}
	ticks := 0
	if ev.Interval != nil {
		ticks = int(ev.Interval.Ticks()) //nolint:gosec // counters fit in int on 64-bit targets
	}
	return map[string]any{
		"tag":      int(ev.Entry.Tag),
		"counter":  int(counter), //nolint:gosec // counters fit in int on 64-bit targets
		"name":     ev.Class.Name,
		"key":      ev.Class.Key,
		"kind":     ev.Class.Kind.String(),
		"index":    ev.Index,
		"relative": int(ev.Relative), //nolint:gosec // counters fit in int on 64-bit targets
		"ticks":    ticks,
		"capture":  info.Name,
		"format":   info.Format,
		"env":      environ,
	}
}

// CaptureEnv builds the evaluation environment of a capture.
func CaptureEnv(info CaptureInfo, environ map[string]string) map[string]any {
	if environ == nil {
		environ = map[string]string{}
	}
	return map[string]any{
		"capture": info.Name,
		"format":  info.Format,
		"entries": info.Entries,
		"env":     environ,
	}
}

package attributes

import (
	"testing"

	"github.com/ayushev/micro-man-tools/internal/config"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
	"github.com/ayushev/micro-man-tools/internal/intervals"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

var testInfo = CaptureInfo{Name: "capture.log", Format: "hex", Entries: 4}

func stopEvent() eventprocessor.Event {
	return eventprocessor.Event{
		Index:    3,
		Entry:    record.Entry{Tag: 0x4001, Counter: 150},
		Class:    tagclass.Classification{Kind: tagclass.Stop, Name: "TASK_STOP", Key: "0x0001"},
		Relative: 50,
		Outcome:  intervals.Closed,
		Interval: &intervals.Interval{Begin: 1, End: 3, Key: "0x0001", BeginCounter: 100, EndCounter: 150},
	}
}

func TestEvaluator_Simple(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "test.attr", Expression: `env["FOO"]`},
		{Name: "entry.name", Expression: `name`},
		{Name: "entry.ticks", Expression: `ticks * 2`},
	}

	evaluator, err := NewEvaluator(attrs, map[string]string{"FOO": "bar"}, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(testInfo, stopEvent())
	if len(result) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(result))
	}

	if result[0].Key != "test.attr" || result[0].Value.AsString() != "bar" {
		t.Errorf("result[0] = %v, want test.attr=bar", result[0])
	}
	if result[1].Key != "entry.name" || result[1].Value.AsString() != "TASK_STOP" {
		t.Errorf("result[1] = %v, want entry.name=TASK_STOP", result[1])
	}
	if result[2].Value.AsString() != "100" {
		t.Errorf("result[2].Value = %q, want 100", result[2].Value.AsString())
	}
}

func TestEvaluator_MapExpansion(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "expanded", Expression: `env`},
	}

	evaluator, err := NewEvaluator(attrs, map[string]string{"A": "1", "B.C": "2"}, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(testInfo, stopEvent())
	if len(result) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(result))
	}

	got := map[string]string{}
	for _, kv := range result {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	if got["expanded.A"] != "1" {
		t.Errorf("expanded.A = %q, want 1", got["expanded.A"])
	}
	if got["expanded.B_C"] != "2" {
		t.Errorf("expanded.B_C = %q, want 2", got["expanded.B_C"])
	}
}

func TestEvaluator_CompileError(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "bad", Expression: `undefined_var + `},
	}

	if _, err := NewEvaluator(attrs, nil, nil); err == nil {
		t.Fatal("NewEvaluator() expected error for invalid expression")
	}
}

func TestEvaluator_RuntimeErrorSkipped(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "oob", Expression: `[1, 2][index]`},
		{Name: "ok", Expression: `kind`},
	}

	evaluator, err := NewEvaluator(attrs, nil, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result := evaluator.Evaluate(testInfo, stopEvent())
	if len(result) != 1 {
		t.Fatalf("Expected 1 attribute, got %d: %v", len(result), result)
	}
	if result[0].Value.AsString() != "Stop" {
		t.Errorf("kind = %q, want Stop", result[0].Value.AsString())
	}
}

func TestEvaluator_Empty(t *testing.T) {
	evaluator, err := NewEvaluator(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if !evaluator.Empty() {
		t.Error("Empty() = false, want true")
	}
	if result := evaluator.Evaluate(testInfo, stopEvent()); result != nil {
		t.Errorf("Evaluate() = %v, want nil", result)
	}
}

func TestSanitizeAttributeName(t *testing.T) {
	tests := map[string]string{
		"simple":     "simple",
		"with.dot":   "with_dot",
		"with-dash":  "with_dash",
		"a b":        "a_b",
		"UPPER_case": "UPPER_case",
	}
	for in, want := range tests {
		if got := sanitizeAttributeName(in); got != want {
			t.Errorf("sanitizeAttributeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEnviron(t *testing.T) {
	env := parseEnviron([]string{"A=1", "B=x=y", "=skipped", "NOVALUE"})
	if len(env) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(env), env)
	}
	if env["B"] != "x=y" {
		t.Errorf("B = %q, want x=y", env["B"])
	}
}

func TestEntryEnv_DataCounterIsPayload(t *testing.T) {
	ev := eventprocessor.Event{
		Index:   2,
		Entry:   record.Entry{Tag: 0xC001, Counter: 0x1000000AB},
		Class:   tagclass.Classification{Kind: tagclass.Data, Name: "PAYLOAD"},
		Payload: 0xAB,
	}

	env := EntryEnv(testInfo, ev, nil)
	if got := env["counter"]; got != 0xAB {
		t.Errorf("counter = %v, want 0xAB", got)
	}

	env = EntryEnv(testInfo, stopEvent(), nil)
	if got := env["counter"]; got != 150 {
		t.Errorf("counter = %v, want 150 for stop event", got)
	}
}

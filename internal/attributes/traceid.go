package attributes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDEvaluator handles evaluation and validation of trace ID expressions.
type TraceIDEvaluator struct {
	program *vm.Program
	environ map[string]string
}

// NewTraceIDEvaluator creates a new trace ID evaluator.
// If exprStr is empty, the evaluator yields zero trace IDs and the tracer
// generates random ones.
func NewTraceIDEvaluator(exprStr string, environ map[string]string) (*TraceIDEvaluator, error) {
	if exprStr == "" {
		return &TraceIDEvaluator{}, nil
	}

	program, err := expr.Compile(exprStr, expr.Env(captureSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile trace-id expression: %w", err)
	}

	return &TraceIDEvaluator{
		program: program,
		environ: environ,
	}, nil
}

// EvaluateAndValidate evaluates the trace-id expression for a capture.
// Returns the trace ID, any warnings to attach to the root span, and an error.
// Results that are not 32 hex chars are hashed with SHA-256.
func (e *TraceIDEvaluator) EvaluateAndValidate(info CaptureInfo) (trace.TraceID, []attribute.KeyValue, error) {
	if e == nil || e.program == nil {
		return trace.TraceID{}, nil, nil
	}

	output, err := expr.Run(e.program, CaptureEnv(info, e.environ))
	if err != nil {
		return trace.TraceID{}, nil, fmt.Errorf("failed to evaluate trace-id expression: %w", err)
	}

	resultStr := fmt.Sprint(output)

	if len(resultStr) == 32 {
		if traceID, err := trace.TraceIDFromHex(resultStr); err == nil {
			return traceID, nil, nil
		}
	}

	hash := sha256.Sum256([]byte(resultStr))
	traceID, err := trace.TraceIDFromHex(hex.EncodeToString(hash[:16]))
	if err != nil {
		return trace.TraceID{}, nil, fmt.Errorf("failed to create trace ID from hash: %w", err)
	}

	warnings := []attribute.KeyValue{
		attribute.String("_trace_id_expr_result", resultStr),
		attribute.String("_trace_id_invalid_warning", fmt.Sprintf("Expression result %q is not a valid 32-char hex trace ID, used SHA-256 hash instead", resultStr)),
	}

	return traceID, warnings, nil
}

// ParentIDEvaluator handles evaluation and validation of parent span ID expressions.
type ParentIDEvaluator struct {
	program *vm.Program
	environ map[string]string
}

// NewParentIDEvaluator creates a new parent ID evaluator.
// If exprStr is empty, the evaluator returns no parent ID (zero span ID).
func NewParentIDEvaluator(exprStr string, environ map[string]string) (*ParentIDEvaluator, error) {
	if exprStr == "" {
		return &ParentIDEvaluator{}, nil
	}

	program, err := expr.Compile(exprStr, expr.Env(captureSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile parent-id expression: %w", err)
	}

	return &ParentIDEvaluator{
		program: program,
		environ: environ,
	}, nil
}

// EvaluateAndValidate evaluates the parent-id expression for a capture.
// Invalid results yield a zero span ID and warnings.
func (e *ParentIDEvaluator) EvaluateAndValidate(info CaptureInfo) (trace.SpanID, []attribute.KeyValue, error) {
	if e == nil || e.program == nil {
		return trace.SpanID{}, nil, nil
	}

	output, err := expr.Run(e.program, CaptureEnv(info, e.environ))
	if err != nil {
		return trace.SpanID{}, nil, fmt.Errorf("failed to evaluate parent-id expression: %w", err)
	}

	resultStr := fmt.Sprint(output)

	if len(resultStr) == 16 {
		if spanID, err := trace.SpanIDFromHex(resultStr); err == nil {
			return spanID, nil, nil
		}
	}

	warnings := []attribute.KeyValue{
		attribute.String("_parent_id_expr_result", resultStr),
		attribute.String("_parent_id_invalid_warning", fmt.Sprintf("Expression result %q is not a valid 16-char hex span ID, using null parent ID instead", resultStr)),
	}

	return trace.SpanID{}, warnings, nil
}

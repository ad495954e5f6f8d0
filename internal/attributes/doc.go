// Package attributes provides expression evaluation for custom span
// attributes, entry filters, trace IDs and parent span IDs.
//
// Expressions use the expr language and are evaluated against one of two
// environments:
//   - entry environment: tag, counter, name, key, kind, index, relative,
//     ticks, capture, format and env (process environment)
//   - capture environment: capture, format, entries and env
//
// Four evaluators:
//   - Evaluator: custom attribute expressions, entry environment
//   - Filter: boolean expressions selecting entries, entry environment
//   - TraceIDEvaluator: trace ID expressions (32 hex chars), capture environment
//   - ParentIDEvaluator: parent span ID expressions (16 hex chars), capture environment
//
// Invalid trace IDs are hashed with SHA-256 to produce valid IDs.
// Invalid parent IDs result in a null parent (zero span ID).
package attributes

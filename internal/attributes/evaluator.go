package attributes

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/config"
	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
)

// Evaluator handles compilation and evaluation of custom attribute expressions.
type Evaluator struct {
	customAttrs   []config.CustomAttribute
	compiledExprs []*vm.Program
	environ       map[string]string
	logger        *zap.Logger
}

// NewEvaluator creates a new attribute evaluator.
// It pre-compiles all custom attribute expressions. environ is exposed to
// expressions as env; logger may be nil.
func NewEvaluator(customAttrs []config.CustomAttribute, environ map[string]string, logger *zap.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	compiledExprs := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(entrySchema()))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiledExprs[i] = program
	}

	return &Evaluator{
		customAttrs:   customAttrs,
		compiledExprs: compiledExprs,
		environ:       environ,
		logger:        logger,
	}, nil
}

// Empty reports whether no custom attribute is configured.
func (e *Evaluator) Empty() bool {
	return e == nil || len(e.customAttrs) == 0
}

// Evaluate evaluates the custom attribute expressions for one entry.
// Expressions that fail at runtime are logged and skipped.
func (e *Evaluator) Evaluate(info CaptureInfo, ev eventprocessor.Event) []attribute.KeyValue {
	if e.Empty() {
		return nil
	}

	env := EntryEnv(info, ev, e.environ)

	var attrs []attribute.KeyValue
	for i, customAttr := range e.customAttrs {
		output, err := expr.Run(e.compiledExprs[i], env)
		if err != nil {
			e.logger.Warn("failed to evaluate attribute expression",
				zap.String("attribute", customAttr.Name),
				zap.Int("index", ev.Index),
				zap.Error(err),
			)
			continue
		}
		attrs = append(attrs, toAttributes(customAttr.Name, output)...)
	}

	return attrs
}

// toAttributes converts an expression result into attributes. Maps are
// expanded into one attribute per key with dot notation.
func toAttributes(name string, output any) []attribute.KeyValue {
	outputValue := reflect.ValueOf(output)
	if outputValue.Kind() != reflect.Map {
		return []attribute.KeyValue{attribute.String(name, fmt.Sprint(output))}
	}

	attrs := make([]attribute.KeyValue, 0, outputValue.Len())
	for _, key := range outputValue.MapKeys() {
		attrName := name + "." + sanitizeAttributeName(fmt.Sprintf("%v", key.Interface()))
		attrs = append(attrs, attribute.String(attrName, fmt.Sprint(outputValue.MapIndex(key).Interface())))
	}
	return attrs
}

// sanitizeAttributeName replaces non-alphanumeric characters with underscores.
func sanitizeAttributeName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}

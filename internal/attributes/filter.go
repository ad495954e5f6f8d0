package attributes

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ayushev/micro-man-tools/internal/eventprocessor"
)

// Filter selects entries with a boolean expression.
// A nil Filter matches every entry.
type Filter struct {
	program *vm.Program
	environ map[string]string
}

// NewFilter compiles a filter expression. An empty expression yields a nil
// filter.
func NewFilter(exprStr string, environ map[string]string) (*Filter, error) {
	if exprStr == "" {
		return nil, nil
	}

	program, err := expr.Compile(exprStr, expr.Env(entrySchema()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}

	return &Filter{program: program, environ: environ}, nil
}

// Match reports whether the entry passes the filter.
func (f *Filter) Match(info CaptureInfo, ev eventprocessor.Event) (bool, error) {
	if f == nil {
		return true, nil
	}

	output, err := expr.Run(f.program, EntryEnv(info, ev, f.environ))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter expression: %w", err)
	}

	ok, _ := output.(bool)
	return ok, nil
}

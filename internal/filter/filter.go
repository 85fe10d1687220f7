// Package filter compiles client-side --filter expressions and
// evaluates them against listed items.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate is a compiled boolean filter expression. Field names in
// the expression match the JSON field names of the filtered items,
// e.g. `provider == "postgres" && lifecycle_state == "failed"`.
type Predicate struct {
	source  string
	program *vm.Program
}

// Compile compiles a filter expression source.
func Compile(source string) (*Predicate, error) {
	program, err := expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", source, err)
	}
	return &Predicate{source: source, program: program}, nil
}

// Match evaluates the predicate against one item. The item is viewed
// through its JSON encoding so expression fields line up with the
// CLI's JSON output.
func (p *Predicate) Match(item any) (bool, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", p.source, err)
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("filter %q: %w", p.source, err)
	}
	result, err := expr.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", p.source, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("filter %q returned %T, expected bool", p.source, result)
	}
	return ok, nil
}

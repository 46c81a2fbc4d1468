package compilex

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Comparator evaluates a relational operator over two resolved operands.
type Comparator interface {
	Compare(left, right any, op string) (bool, error)
}

// operator is the canonical form of a comparison alias.
type operator int

const (
	opEqual operator = iota
	opGreater
	opGreaterOrEqual
)

// operators maps every accepted alias, lower-cased, to its canonical form.
// There is deliberately no inequality or less-than: templates express those
// with `unless` or by swapping operands.
var operators = map[string]operator{
	"=":                     opEqual,
	"==":                    opEqual,
	"eq":                    opEqual,
	"equal":                 opEqual,
	"is":                    opEqual,
	">":                     opGreater,
	"gt":                    opGreater,
	"greater than":          opGreater,
	">=":                    opGreaterOrEqual,
	"gte":                   opGreaterOrEqual,
	"greater than or equal": opGreaterOrEqual,
}

// lookupOperator normalizes op and returns its canonical form.
func lookupOperator(op string) (operator, error) {
	canonical, ok := operators[strings.ToLower(strings.Join(strings.Fields(op), " "))]
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrInvalidComparison, op)
	}
	return canonical, nil
}

// celComparator is the default Comparator. Equality is strict (same type and
// value); ordering is delegated to CEL so mixed numeric operands compare by
// value while incomparable operands are simply not greater.
type celComparator struct {
	greater        cel.Program
	greaterOrEqual cel.Program
}

// NewComparator creates the default Comparator.
func NewComparator() (Comparator, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("left", decls.Dyn),
			decls.NewVar("right", decls.Dyn),
		),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	greater, err := program(env, "left > right")
	if err != nil {
		return nil, err
	}
	greaterOrEqual, err := program(env, "left >= right")
	if err != nil {
		return nil, err
	}

	return &celComparator{
		greater:        greater,
		greaterOrEqual: greaterOrEqual,
	}, nil
}

func program(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}
	return prg, nil
}

// Compare implements Comparator.
func (c *celComparator) Compare(left, right any, op string) (bool, error) {
	canonical, err := lookupOperator(op)
	if err != nil {
		return false, err
	}

	switch canonical {
	case opEqual:
		return strictEqual(left, right), nil
	case opGreater:
		return c.order(c.greater, left, right), nil
	default:
		return c.order(c.greaterOrEqual, left, right), nil
	}
}

// order runs an ordering program. Operands CEL cannot order yield false.
func (c *celComparator) order(prg cel.Program, left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	out, _, err := prg.Eval(map[string]any{
		"left":  left,
		"right": right,
	})
	if err != nil {
		return false
	}
	result, ok := out.Value().(bool)
	return ok && result
}

// strictEqual compares type and value.
func strictEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if reflect.TypeOf(left) != reflect.TypeOf(right) {
		return false
	}
	return reflect.DeepEqual(left, right)
}

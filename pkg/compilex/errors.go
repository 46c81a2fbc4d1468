package compilex

import "errors"

var (
	// ErrDirectiveNotFound is returned when a block names a directive that is
	// neither built in nor registered on the compiler.
	ErrDirectiveNotFound = errors.New("directive not found")

	// ErrInvalidStatement is returned when a conditional statement does not
	// match `<var>[:cast] <comparison> <value>`.
	ErrInvalidStatement = errors.New("invalid statement")

	// ErrInvalidLoopStatement is returned when a loop statement does not
	// match `<name>[, <index>] of|in <items>`.
	ErrInvalidLoopStatement = errors.New("invalid loop statement")

	// ErrInvalidComparison is returned for an operator outside the
	// comparison vocabulary.
	ErrInvalidComparison = errors.New("invalid comparison")

	// ErrInvalidExpression is returned when an echo expression does not
	// match `name (or name)* (or 'literal')?`.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrTooDeep is returned when nesting or handler recompilation exceeds
	// the compiler's maximum depth.
	ErrTooDeep = errors.New("template too deeply nested")
)

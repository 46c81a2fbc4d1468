// Package cel provides a CEL (Common Expression Language) evaluator for template conditions.
//
// The built-in `if` directive only knows equality and greater-than comparisons. The
// evaluator backs an optional `when` directive that accepts any boolean CEL expression
// over the template attributes.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	compiler := compilex.New().Extend("when", evaluator.Directive())
//
//	out, err := compiler.Compile(
//	    "{% when priority == 'high' && score > 0.8 %}urgent{% endwhen %}",
//	    map[string]interface{}{"priority": "high", "score": 0.95},
//	)
//	// out == "urgent"
//
// Every attribute whose name is a valid CEL identifier is declared as a dynamic
// variable. Programs are cached per expression and variable set.
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >= (numeric comparisons across int, uint and double)
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Arithmetic: +, -, *, /
//   - List operations: in, size
//   - Map access: user.role, user["role"]
//
// Block statements cannot contain `%` or `}`, so the modulo operator and map
// literals are not available inside `when`.
package cel

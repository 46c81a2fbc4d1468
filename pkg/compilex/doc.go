// Package compilex compiles text templates containing block directives and
// echo expressions into a resolved string in a single pass.
//
// Template syntax:
//
//	{% directive statement %}body{% enddirective %}   block
//	{{ name or other or 'fallback' }}                  echo
//
// Built-in directives:
//   - if / unless - `{% if a == b %}`, `{% unless flag %}`
//   - each        - `{% each item, key of items %}` (`in` is accepted for `of`)
//
// Conditional operators (case-insensitive): `=`, `==`, `eq`, `equal`, `is`
// for strict equality; `>`, `gt`, `greater than`; `>=`, `gte`,
// `greater than or equal`. There is no inequality or less-than operator.
//
// Equality is strict on type: "5" never equals 5. A bare number in a
// condition takes the numeric type of the attribute it is compared with
// when the value fits, so `{% if n == 3 %}` holds for n = 3, int64(3) or
// 3.0 (numbers decoded from JSON are float64). It does not hold for
// n = "3".
//
// An echo is a chain of terms joined by `or`. Each term is an attribute
// path or a quoted literal, and the first non-blank one is printed. nil,
// false, "", empty collections and nil pointers are blank; 0 is not. A
// malformed echo is replaced by an error message naming the expression.
//
// Example usage:
//
//	c := compilex.New(compilex.WithLogger(logger))
//	c.Extend("shout", func(statement, body string, attrs map[string]any) (string, error) {
//	    return strings.ToUpper(statement) + "!", nil
//	})
//
//	out, err := c.Compile(
//	    "{% each user of users %}{{ user.name }} {% endeach %}{% shout done %}{% endshout %}",
//	    map[string]any{"users": []map[string]any{{"name": "ada"}, {"name": "bob"}}},
//	)
//	// out == "ada bob DONE!"
//
// Blocks of the same directive may nest to any depth. Inside a loop body the
// loop variable, its index (default `index`) and `parent` are bound per
// iteration, and nested blocks are compiled with those bindings.
//
// Text that only looks like a block, such as `{% name %}` without a
// statement or an open tag with no matching end tag, is copied to the
// output unchanged.
package compilex

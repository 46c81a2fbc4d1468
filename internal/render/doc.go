// Package render selects and runs the template engine for a render request.
//
// Two engines are available: the directive compiler from pkg/compilex and a
// Handlebars engine. A Service picks the engine named by the request or
// detects it from the template syntax.
//
// Example usage:
//
//	service := render.NewService(compiler, render.NewHandlebars(logger), render.EngineAuto, logger)
//
//	result, err := service.Render(ctx, &render.Request{
//	    Template:   "{% each u of users %}{{ u.name }} {% endeach %}",
//	    Attributes: map[string]interface{}{"users": users},
//	})
//
// Engine detection (EngineAuto):
//   - `{%` present - directive
//   - `{{#` or `{{/` present - handlebars
//   - otherwise - directive
//
// Handlebars helpers:
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - ne - Inequality comparison
//   - gt - Greater than (for numbers)
//   - lt - Less than (for numbers)
//   - contains - Check if string contains substring
//   - join - Join array elements with separator
//   - len - Get length of array/string/map
//
// Example with helpers:
//
//	{{uppercase name}}                     # "JOHN"
//	{{default value "N/A"}}                # "N/A" if value is empty
//	{{#if (gt score 0.8)}}...{{/if}}       # Numeric comparison
//	{{join items ", "}}                    # "a, b, c"
package render

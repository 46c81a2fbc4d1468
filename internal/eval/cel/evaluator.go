package cel

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-compilex/pkg/compilex"
)

// identifiers finds identifier-shaped words in an expression. Words inside
// string literals are included; declaring an unused variable is harmless.
var identifiers = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// defaultCacheSize bounds the program cache before it is reset.
const defaultCacheSize = 256

// reserved words cannot be declared as CEL variables.
var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true,
	"break": true, "const": true, "continue": true, "else": true, "for": true,
	"function": true, "if": true, "import": true, "let": true, "loop": true,
	"package": true, "namespace": true, "return": true, "var": true,
	"void": true, "while": true,
}

// Evaluator evaluates CEL expressions against template attributes.
type Evaluator struct {
	env       *cel.Env
	cache     map[string]cel.Program
	cacheSize int
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewEvaluator creates a new CEL evaluator
func NewEvaluator(logger *zap.Logger) (*Evaluator, error) {
	env, err := cel.NewEnv(cel.CrossTypeNumericComparisons(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		env:       env,
		cache:     make(map[string]cel.Program),
		cacheSize: defaultCacheSize,
		logger:    logger,
	}, nil
}

// Evaluate evaluates expression with the attributes it names exposed as
// variables of the same name.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error) {
	names := variables(expression, vars)

	program, err := e.getProgram(expression, names)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	activation := make(map[string]interface{}, len(names))
	for _, name := range names {
		activation[name] = vars[name]
	}

	out, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return out.Value(), nil
}

// Directive returns a handler for `{% when <expression> %}body{% endwhen %}`
// that keeps body when the expression evaluates to true.
func (e *Evaluator) Directive() compilex.Handler {
	return func(statement, body string, attrs map[string]any) (string, error) {
		result, err := e.Evaluate(context.Background(), statement, attrs)
		if err != nil {
			return "", fmt.Errorf("%w %s: %v", compilex.ErrInvalidStatement, statement, err)
		}

		matched, ok := result.(bool)
		if !ok {
			e.logger.Warn("condition did not return boolean",
				zap.String("condition", statement),
				zap.Any("result", result),
			)
			return "", fmt.Errorf("%w %s: result is %T, not bool", compilex.ErrInvalidStatement, statement, result)
		}

		if !matched {
			return "", nil
		}
		return body, nil
	}
}

// variables returns the sorted attribute names that expression mentions and
// that can be CEL variables. Programs are cached per expression and this set,
// so attributes the expression never reads do not create new entries.
func variables(expression string, vars map[string]interface{}) []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range identifiers.FindAllString(expression, -1) {
		if seen[name] || reserved[name] {
			continue
		}
		seen[name] = true
		if _, ok := vars[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// getProgram gets a compiled program from cache or compiles it. Programs are
// keyed by expression and declared variable set.
func (e *Evaluator) getProgram(expression string, names []string) (cel.Program, error) {
	key := expression + "\x00" + strings.Join(names, ",")

	e.mu.RLock()
	if program, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[key]; ok {
		return program, nil
	}

	declarations := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		declarations = append(declarations, cel.Variable(name, cel.DynType))
	}
	env, err := e.env.Extend(declarations...)
	if err != nil {
		return nil, fmt.Errorf("environment error: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	if len(e.cache) >= e.cacheSize {
		e.cache = make(map[string]cel.Program)
	}
	e.cache[key] = program

	return program, nil
}

// ValidateExpression reports whether expression compiles when the given
// attribute names are declared.
func (e *Evaluator) ValidateExpression(expression string, names ...string) error {
	_, err := e.getProgram(expression, names)
	return err
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

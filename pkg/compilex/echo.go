package compilex

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const echoToken = `'[^']*'|"[^"]*"|[\w.]+`

var (
	echoPattern       = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
	expressionPattern = regexp.MustCompile(`^(?:` + echoToken + `)(?:\s+or\s+(?:` + echoToken + `))*$`)
	echoTokens        = regexp.MustCompile(`(?:^|\s+or\s+)(` + echoToken + `)`)
)

// Resolve evaluates an echo expression such as `name or other or 'fallback'`.
// Terms are attribute paths or quoted literals; the first one that resolves
// to a non-blank value wins, and "" is returned when none does.
func Resolve(attrs map[string]any, expression string) (string, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", nil
	}
	if !expressionPattern.MatchString(expression) {
		return "", fmt.Errorf("%w %q", ErrInvalidExpression, expression)
	}

	for _, m := range echoTokens.FindAllStringSubmatch(expression, -1) {
		if v, ok := Lookup(attrs, m[1]); ok && !blank(v) {
			return Stringify(v), nil
		}
	}
	return "", nil
}

// compileEchos substitutes every {{ }} marker in text. A failing expression
// is rendered in place as "<message> at <expression>" and does not affect
// its neighbours.
func (c *Compiler) compileEchos(text string, attrs map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return echoPattern.ReplaceAllStringFunc(text, func(marker string) string {
		expression := strings.TrimSpace(marker[2 : len(marker)-2])

		value, err := Resolve(attrs, expression)
		if err != nil {
			c.logger.Warn("echo resolution failed",
				zap.String("expression", expression),
				zap.Error(err),
			)
			return fmt.Sprintf("%s at %s", err.Error(), expression)
		}
		return value
	})
}

package compilex

import (
	"fmt"
	"regexp"
	"strings"
)

var conditionPattern = regexp.MustCompile(
	`(?P<var>(?:'[^']*'|"[^"]*"|[\w.]+)+(?::(?P<cast>\w+))*)\s+` +
		`(?P<comparison>(?:\w+\s?)+|[=>]+)\s+` +
		`(?P<value>(?:'[^']*'|"[^"]*"|[\w.]+)+)`,
)

// Condition is a parsed `<var>[:cast] <comparison> <value>` statement.
type Condition struct {
	Variable   string
	Cast       string
	Comparison string
	Value      string
}

// ParseCondition splits a conditional statement into its parts. The cast
// suffix is captured but has no effect on evaluation.
func ParseCondition(statement string) (*Condition, error) {
	m := conditionPattern.FindStringSubmatch(statement)
	if m == nil {
		return nil, fmt.Errorf("%w %s", ErrInvalidStatement, statement)
	}

	variable := strings.TrimSpace(m[conditionPattern.SubexpIndex("var")])
	cast := m[conditionPattern.SubexpIndex("cast")]
	if cast != "" {
		variable = strings.TrimSuffix(variable, ":"+cast)
	}

	return &Condition{
		Variable:   variable,
		Cast:       cast,
		Comparison: strings.TrimSpace(m[conditionPattern.SubexpIndex("comparison")]),
		Value:      strings.TrimSpace(m[conditionPattern.SubexpIndex("value")]),
	}, nil
}

// evaluate decides a conditional statement.
//
// A statement that is itself an existing attribute path is decided by the
// truthiness of that attribute alone; anything else must parse as a
// three-part comparison.
func (c *Compiler) evaluate(statement string, attrs map[string]any) (bool, error) {
	if _, quoted := unquote(statement); statement != "" && !quoted {
		if v, ok := Lookup(attrs, statement); ok {
			return Truthy(v), nil
		}
	}

	cond, err := ParseCondition(statement)
	if err != nil {
		return false, err
	}

	left, leftLiteral := operand(attrs, cond.Variable)
	right, rightLiteral := operand(attrs, cond.Value)
	switch {
	case rightLiteral && !leftLiteral:
		right = numericLike(right, left)
	case leftLiteral && !rightLiteral:
		left = numericLike(left, right)
	}

	return c.comparator.Compare(left, right, cond.Comparison)
}

// If returns body when statement holds and "" otherwise.
func (c *Compiler) If(statement, body string, attrs map[string]any) (string, error) {
	ok, err := c.evaluate(statement, attrs)
	if err != nil || !ok {
		return "", err
	}
	return body, nil
}

// Unless returns body when statement does not hold and "" otherwise.
func (c *Compiler) Unless(statement, body string, attrs map[string]any) (string, error) {
	ok, err := c.evaluate(statement, attrs)
	if err != nil || ok {
		return "", err
	}
	return body, nil
}

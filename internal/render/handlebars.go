package render

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-compilex/pkg/compilex"
)

// Handlebars renders Handlebars templates
type Handlebars struct {
	cache   map[string]*raymond.Template
	helpers map[string]interface{}
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHandlebars creates a new Handlebars engine
func NewHandlebars(logger *zap.Logger) *Handlebars {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlebars{
		cache:   make(map[string]*raymond.Template),
		helpers: helpers(),
		logger:  logger,
	}
}

// Render renders a template with the given attributes
func (h *Handlebars) Render(templateStr string, attrs map[string]interface{}) (string, error) {
	// Get or compile template
	tmpl, err := h.getTemplate(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	// Execute the template
	result, err := tmpl.Exec(attrs)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return result, nil
}

// getTemplate gets a compiled template from cache or compiles it
func (h *Handlebars) getTemplate(templateStr string) (*raymond.Template, error) {
	h.mu.RLock()
	if tmpl, ok := h.cache[templateStr]; ok {
		h.mu.RUnlock()
		return tmpl, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if tmpl, ok := h.cache[templateStr]; ok {
		return tmpl, nil
	}

	tmpl, err := raymond.Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	// Helpers are bound per template so several engines can coexist
	tmpl.RegisterHelpers(h.helpers)

	h.cache[templateStr] = tmpl
	h.logger.Debug("compiled handlebars template", zap.Int("cached", len(h.cache)))

	return tmpl, nil
}

// ValidateTemplate validates a template without rendering it
func (h *Handlebars) ValidateTemplate(templateStr string) error {
	_, err := raymond.Parse(templateStr)
	return err
}

// ClearCache clears the compiled template cache
func (h *Handlebars) ClearCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[string]*raymond.Template)
}

// helpers returns the custom Handlebars helpers
func helpers() map[string]interface{} {
	return map[string]interface{}{
		"uppercase": func(str string) string {
			return strings.ToUpper(str)
		},

		"lowercase": func(str string) string {
			return strings.ToLower(str)
		},

		"trim": func(str string) string {
			return strings.TrimSpace(str)
		},

		// default returns defaultValue when value is empty
		"default": func(value interface{}, defaultValue interface{}) interface{} {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},

		"eq": func(a, b interface{}) bool {
			return reflect.DeepEqual(a, b)
		},

		"ne": func(a, b interface{}) bool {
			return !reflect.DeepEqual(a, b)
		},

		"gt": func(a, b interface{}) bool {
			x, okX := number(a)
			y, okY := number(b)
			return okX && okY && x > y
		},

		"lt": func(a, b interface{}) bool {
			x, okX := number(a)
			y, okY := number(b)
			return okX && okY && x < y
		},

		"contains": func(str, substr string) bool {
			return strings.Contains(str, substr)
		},

		// join joins slice elements with the attribute stringification rules
		"join": func(arr interface{}, sep string) string {
			v := reflect.ValueOf(arr)
			if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
				return compilex.Stringify(arr)
			}
			strs := make([]string, v.Len())
			for i := range strs {
				strs[i] = compilex.Stringify(v.Index(i).Interface())
			}
			return strings.Join(strs, sep)
		},

		"len": func(value interface{}) int {
			v := reflect.ValueOf(value)
			switch v.Kind() {
			case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
				return v.Len()
			default:
				return 0
			}
		},
	}
}

// number converts numeric helper arguments to float64. Numeric strings are
// accepted since Handlebars literals may arrive quoted.
func number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

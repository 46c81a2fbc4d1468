package render

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Engine names a template engine
type Engine string

const (
	// EngineDirective renders `{% directive %}` blocks and `{{ expr }}` echoes
	EngineDirective Engine = "directive"

	// EngineHandlebars renders Handlebars templates
	EngineHandlebars Engine = "handlebars"

	// EngineAuto picks the engine from the template syntax
	EngineAuto Engine = "auto"
)

// ParseEngine converts a configuration or request value into an Engine.
// The empty string maps to EngineAuto.
func ParseEngine(name string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(name))) {
	case "", EngineAuto:
		return EngineAuto, nil
	case EngineDirective:
		return EngineDirective, nil
	case EngineHandlebars:
		return EngineHandlebars, nil
	default:
		return "", fmt.Errorf("unknown engine: %s", name)
	}
}

// Renderer renders a template against a set of attributes
type Renderer interface {
	Render(template string, attrs map[string]interface{}) (string, error)
}

// Request is a single render request
type Request struct {
	Engine     Engine                 `json:"engine,omitempty"`
	Template   string                 `json:"template"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Result is the outcome of a render request
type Result struct {
	Output string `json:"output"`
	Engine Engine `json:"engine"`
}

// Service dispatches render requests to the configured engines
type Service struct {
	renderers     map[Engine]Renderer
	defaultEngine Engine
	logger        *zap.Logger
}

// NewService creates a render service. Requests without an engine use
// defaultEngine.
func NewService(directive, handlebars Renderer, defaultEngine Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultEngine == "" {
		defaultEngine = EngineAuto
	}

	renderers := make(map[Engine]Renderer, 2)
	if directive != nil {
		renderers[EngineDirective] = directive
	}
	if handlebars != nil {
		renderers[EngineHandlebars] = handlebars
	}

	return &Service{
		renderers:     renderers,
		defaultEngine: defaultEngine,
		logger:        logger,
	}
}

// Render renders the request with the selected engine
func (s *Service) Render(ctx context.Context, req *Request) (*Result, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine := req.Engine
	if engine == "" {
		engine = s.defaultEngine
	}
	if engine == EngineAuto {
		engine = DetectEngine(req.Template)
	}

	renderer, ok := s.renderers[engine]
	if !ok {
		return nil, fmt.Errorf("engine not available: %s", engine)
	}

	s.logger.Debug("rendering template",
		zap.String("engine", string(engine)),
		zap.Int("template_size", len(req.Template)),
		zap.Int("attributes", len(req.Attributes)),
	)

	attrs := req.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	output, err := renderer.Render(req.Template, attrs)
	if err != nil {
		s.logger.Error("render failed",
			zap.String("engine", string(engine)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", engine, err)
	}

	return &Result{Output: output, Engine: engine}, nil
}

// DetectEngine detects the template engine from the template syntax
func DetectEngine(template string) Engine {
	// Directive blocks win when both syntaxes appear
	if strings.Contains(template, "{%") {
		return EngineDirective
	}

	// Handlebars block helpers
	if strings.Contains(template, "{{#") || strings.Contains(template, "{{/") {
		return EngineHandlebars
	}

	// Plain echoes render the same way in both engines
	return EngineDirective
}

// validateRequest validates a render request
func (s *Service) validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}

	switch req.Engine {
	case "", EngineAuto, EngineDirective, EngineHandlebars:
	default:
		return fmt.Errorf("unknown engine: %s", req.Engine)
	}

	return nil
}

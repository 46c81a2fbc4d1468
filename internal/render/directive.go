package render

import "github.com/aescanero/dago-node-compilex/pkg/compilex"

// Directive renders templates with a compilex compiler
type Directive struct {
	compiler *compilex.Compiler
}

// NewDirective wraps compiler as a Renderer
func NewDirective(compiler *compilex.Compiler) *Directive {
	return &Directive{compiler: compiler}
}

// Render compiles template against attrs
func (d *Directive) Render(template string, attrs map[string]interface{}) (string, error) {
	return d.compiler.Compile(template, attrs)
}

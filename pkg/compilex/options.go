package compilex

import "go.uber.org/zap"

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for dispatch and echo diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxDepth bounds nesting and handler recompilation depth.
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithComparator replaces the comparator used by if and unless.
func WithComparator(cmp Comparator) Option {
	return func(c *Compiler) {
		c.comparator = cmp
	}
}

// WithDirective registers a directive at construction time.
func WithDirective(name string, handler Handler) Option {
	return func(c *Compiler) {
		c.directives[name] = handler
	}
}

// WithCacheSize bounds how many parsed templates are kept.
func WithCacheSize(size int) Option {
	return func(c *Compiler) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

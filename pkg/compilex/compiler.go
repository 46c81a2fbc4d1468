package compilex

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds block nesting plus handler recompilation.
const DefaultMaxDepth = 64

// defaultCacheSize bounds the parsed-template cache before it is reset.
const defaultCacheSize = 256

// Handler compiles one block. It receives the trimmed statement, the raw
// body (nested blocks still unresolved) and the attributes in scope. The
// returned text is compiled again with the same attributes; "" omits the
// block.
type Handler func(statement, body string, attrs map[string]any) (string, error)

// builtin enumerates the directives the compiler implements itself.
type builtin int

const (
	builtinNone builtin = iota
	builtinIf
	builtinUnless
	builtinEach
)

var builtins = map[string]builtin{
	"If":     builtinIf,
	"Unless": builtinUnless,
	"Each":   builtinEach,
}

// builtinFor maps a directive name to a built-in by capitalizing its first
// letter, so both `if` and `If` select the conditional.
func builtinFor(name string) builtin {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return builtinNone
	}
	return builtins[string(unicode.ToUpper(r))+name[size:]]
}

// Compiler resolves directive blocks and echo expressions in templates.
// A Compiler is safe for concurrent use; Extend may be called while other
// goroutines compile.
type Compiler struct {
	mu         sync.RWMutex
	directives map[string]Handler

	comparator Comparator
	logger     *zap.Logger
	maxDepth   int

	cacheMu   sync.RWMutex
	cache     map[string][]node
	cacheSize int
}

var defaultComparator = sync.OnceValues(NewComparator)

// New creates a compiler with the built-in directives and any directives
// supplied through options.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		directives: make(map[string]Handler),
		logger:     zap.NewNop(),
		maxDepth:   DefaultMaxDepth,
		cache:      make(map[string][]node),
		cacheSize:  defaultCacheSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.comparator == nil {
		cmp, err := defaultComparator()
		if err != nil {
			panic(fmt.Sprintf("failed to create comparator: %v", err))
		}
		c.comparator = cmp
	}

	return c
}

var defaultCompiler = sync.OnceValue(func() *Compiler { return New() })

// Compile compiles template with a shared default compiler.
func Compile(template string, attrs map[string]any) (string, error) {
	return defaultCompiler().Compile(template, attrs)
}

// Extend registers handler under name, replacing any previous registration,
// and returns c for chaining. Built-in directives keep priority over a
// registration with the same name.
func (c *Compiler) Extend(name string, handler Handler) *Compiler {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directives[name] = handler
	return c
}

// Directives returns the built-in and registered directive names, sorted.
func (c *Compiler) Directives() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := []string{"each", "if", "unless"}
	for name := range c.directives {
		if builtinFor(name) == builtinNone {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Compile resolves every block and echo in template against attrs.
//
// Block-level failures (unknown directive, malformed statement, invalid
// comparison, excessive nesting) abort the compile. Echo failures are
// rendered inline.
func (c *Compiler) Compile(template string, attrs map[string]any) (string, error) {
	return c.render(c.tree(template), attrs, 0)
}

// ClearCache drops all parsed templates.
func (c *Compiler) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string][]node)
}

// tree returns the parsed form of template from cache or parses it.
func (c *Compiler) tree(template string) []node {
	c.cacheMu.RLock()
	if nodes, ok := c.cache[template]; ok {
		c.cacheMu.RUnlock()
		return nodes
	}
	c.cacheMu.RUnlock()

	nodes := parse(template)

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if len(c.cache) >= c.cacheSize {
		c.cache = make(map[string][]node)
	}
	c.cache[template] = nodes
	return nodes
}

// render compiles a node list: blocks are dispatched, text has its echoes
// resolved.
func (c *Compiler) render(nodes []node, attrs map[string]any, depth int) (string, error) {
	if depth > c.maxDepth {
		return "", ErrTooDeep
	}

	var b strings.Builder
	for _, n := range nodes {
		if n.block == nil {
			b.WriteString(c.compileEchos(n.text, attrs))
			continue
		}

		out, err := c.dispatch(n.block, attrs, depth)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// dispatch runs the directive for blk and compiles what it returns.
func (c *Compiler) dispatch(blk *block, attrs map[string]any, depth int) (string, error) {
	c.logger.Debug("dispatching directive",
		zap.String("directive", blk.name),
		zap.String("statement", blk.statement),
		zap.Int("depth", depth),
	)

	switch builtinFor(blk.name) {
	case builtinIf, builtinUnless:
		ok, err := c.evaluate(blk.statement, attrs)
		if err != nil {
			return "", fmt.Errorf("directive %q: %w", blk.name, err)
		}
		if ok == (builtinFor(blk.name) == builtinUnless) {
			return "", nil
		}
		return c.render(blk.children, attrs, depth+1)

	case builtinEach:
		loop, err := ParseLoop(blk.statement)
		if err != nil {
			return "", fmt.Errorf("directive %q: %w", blk.name, err)
		}
		var b strings.Builder
		err = iterate(loop, attrs, func(scope map[string]any) error {
			out, err := c.render(blk.children, scope, depth+1)
			if err != nil {
				return err
			}
			b.WriteString(out)
			return nil
		})
		if err != nil {
			return "", err
		}
		return b.String(), nil
	}

	c.mu.RLock()
	handler, ok := c.directives[blk.name]
	c.mu.RUnlock()
	if !ok || handler == nil {
		return "", fmt.Errorf("%w: %q", ErrDirectiveNotFound, blk.name)
	}

	out, err := handler(blk.statement, blk.body, attrs)
	if err != nil {
		return "", fmt.Errorf("directive %q: %w", blk.name, err)
	}

	if out == blk.body {
		return c.render(blk.children, attrs, depth+1)
	}
	return c.render(parse(out), attrs, depth+1)
}

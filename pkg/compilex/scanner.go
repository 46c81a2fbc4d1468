package compilex

import (
	"regexp"
	"strings"
)

var (
	openTag  = regexp.MustCompile(`^\{%\s*(\w+)\s+([^%}]+)%\}`)
	closeTag = regexp.MustCompile(`^\{%\s*end(\w+)\s*%\}`)
)

// node is either literal text or a resolved block.
type node struct {
	text  string
	block *block
}

// block is a paired `{% name statement %}body{% endname %}`.
type block struct {
	name      string
	statement string
	body      string
	children  []node
}

// frame is an open tag waiting for its end tag.
type frame struct {
	name      string
	statement string
	tag       string
	bodyStart int
	nodes     []node
}

// appendText adds literal text, merging with a preceding text node.
func appendText(nodes []node, text string) []node {
	if text == "" {
		return nodes
	}
	if n := len(nodes); n > 0 && nodes[n-1].block == nil {
		nodes[n-1].text += text
		return nodes
	}
	return append(nodes, node{text: text})
}

// collapse turns an unterminated frame back into literal text inside parent.
func collapse(parent []node, f *frame) []node {
	parent = appendText(parent, f.tag)
	for _, n := range f.nodes {
		if n.block == nil {
			parent = appendText(parent, n.text)
		} else {
			parent = append(parent, n)
		}
	}
	return parent
}

// parse builds the block tree for text.
//
// Tags are paired with a stack: an end tag closes the nearest open tag of the
// same name, so same-name blocks nest to any depth. Open tags of other names
// left between the two become literal body text. End tags without an open
// tag, open tags never closed, and `{% name %}` without a statement are
// literal text.
func parse(text string) []node {
	var (
		root  []node
		stack []*frame
		last  int
	)

	current := func() *[]node {
		if len(stack) == 0 {
			return &root
		}
		return &stack[len(stack)-1].nodes
	}

	for i := 0; i < len(text); {
		off := strings.Index(text[i:], "{%")
		if off < 0 {
			break
		}
		pos := i + off
		rest := text[pos:]

		if m := closeTag.FindStringSubmatch(rest); m != nil {
			depth := -1
			for d := len(stack) - 1; d >= 0; d-- {
				if stack[d].name == m[1] {
					depth = d
					break
				}
			}
			if depth >= 0 {
				nodes := current()
				*nodes = appendText(*nodes, text[last:pos])

				for len(stack)-1 > depth {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					parent := current()
					*parent = collapse(*parent, top)
				}

				f := stack[depth]
				stack = stack[:depth]
				parent := current()
				*parent = append(*parent, node{block: &block{
					name:      f.name,
					statement: strings.TrimSpace(f.statement),
					body:      text[f.bodyStart:pos],
					children:  f.nodes,
				}})

				i = pos + len(m[0])
				last = i
				continue
			}
		}

		if m := openTag.FindStringSubmatch(rest); m != nil {
			nodes := current()
			*nodes = appendText(*nodes, text[last:pos])

			end := pos + len(m[0])
			stack = append(stack, &frame{
				name:      m[1],
				statement: m[2],
				tag:       m[0],
				bodyStart: end,
			})

			i = end
			last = i
			continue
		}

		i = pos + 2
	}

	nodes := current()
	*nodes = appendText(*nodes, text[last:])

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := current()
		*parent = collapse(*parent, top)
	}

	return root
}

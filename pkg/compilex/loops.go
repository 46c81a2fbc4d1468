package compilex

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var loopPattern = regexp.MustCompile(`(?P<name>\w+)(?:\s*,\s*(?P<index>\w+))?\s+(?:of|in)\s+(?P<items>[\w.]+)`)

// defaultIndex is the attribute the iteration key is bound to when the loop
// statement names no index alias.
const defaultIndex = "index"

// Loop is a parsed `<name>[, <index>] of|in <items>` statement.
type Loop struct {
	Name  string
	Index string
	Items string
}

// ParseLoop parses a loop statement.
func ParseLoop(statement string) (*Loop, error) {
	m := loopPattern.FindStringSubmatch(statement)
	if m == nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidLoopStatement, statement)
	}

	index := m[loopPattern.SubexpIndex("index")]
	if index == "" {
		index = defaultIndex
	}

	return &Loop{
		Name:  m[loopPattern.SubexpIndex("name")],
		Index: index,
		Items: m[loopPattern.SubexpIndex("items")],
	}, nil
}

// entry is one (key, value) pair of a loop source.
type entry struct {
	key   any
	value any
}

// entries orders a loop source. Sequences iterate by index, maps by sorted
// key, nil not at all, and any other value is a single element at key 0.
func entries(items any) []entry {
	if items == nil {
		return nil
	}

	v := reflect.ValueOf(items)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]entry, v.Len())
		for i := range out {
			out[i] = entry{key: i, value: v.Index(i).Interface()}
		}
		return out

	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return lessKey(keys[i], keys[j])
		})
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{key: k.Interface(), value: v.MapIndex(k).Interface()}
		}
		return out
	}

	return []entry{{key: 0, value: items}}
}

// lessKey orders map keys: integers numerically, everything else by its
// string form.
func lessKey(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if b.Kind() == a.Kind() {
			return a.Int() < b.Int()
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if b.Kind() == a.Kind() {
			return a.Uint() < b.Uint()
		}
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}

// iterate binds each element of the loop source into a copy of attrs and
// hands the derived attributes to fn in order.
func iterate(loop *Loop, attrs map[string]any, fn func(map[string]any) error) error {
	items, _ := Lookup(attrs, loop.Items)

	for _, e := range entries(items) {
		scope := maps.Clone(attrs)
		if scope == nil {
			scope = make(map[string]any, 3)
		}
		scope[loop.Name] = e.value
		scope[loop.Index] = e.key
		scope["parent"] = map[string]any{
			loop.Name:  e.value,
			loop.Index: e.key,
		}

		if err := fn(scope); err != nil {
			return err
		}
	}
	return nil
}

// Each compiles body once per element of the loop source and concatenates
// the results.
func (c *Compiler) Each(statement, body string, attrs map[string]any) (string, error) {
	loop, err := ParseLoop(statement)
	if err != nil {
		return "", err
	}

	nodes := parse(body)
	var b strings.Builder
	err = iterate(loop, attrs, func(scope map[string]any) error {
		out, err := c.render(nodes, scope, 0)
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

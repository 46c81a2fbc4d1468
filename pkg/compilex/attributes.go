package compilex

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Accessor is implemented by opaque attribute values that expose their own
// key lookup instead of relying on map, slice or struct traversal.
type Accessor interface {
	Attribute(key string) (any, bool)
}

// Lookup resolves key against attrs using dot notation.
//
// An empty key returns attrs itself. A key wrapped in matching single or
// double quotes is a literal and is returned unquoted without any lookup.
// Otherwise every segment must exist; a missing segment yields (nil, false)
// and no partial result.
func Lookup(attrs any, key string) (any, bool) {
	if key == "" {
		return attrs, true
	}

	if literal, ok := unquote(key); ok {
		return literal, true
	}

	target := attrs
	for _, segment := range strings.Split(key, ".") {
		next, ok := child(target, segment)
		if !ok {
			return nil, false
		}
		target = next
	}

	return target, true
}

// Has reports whether key resolves against attrs.
func Has(attrs any, key string) bool {
	_, ok := Lookup(attrs, key)
	return ok
}

// unquote returns the inner text of a 'quoted' or "quoted" token.
func unquote(token string) (string, bool) {
	if len(token) < 3 {
		return "", false
	}
	q := token[0]
	if (q != '\'' && q != '"') || token[len(token)-1] != q {
		return "", false
	}
	return token[1 : len(token)-1], true
}

// child descends one segment into target.
func child(target any, segment string) (any, bool) {
	switch t := target.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := t[segment]
		return v, ok
	case Accessor:
		return t.Attribute(segment)
	}

	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		key, ok := mapKey(v.Type().Key(), segment)
		if !ok {
			return nil, false
		}
		item := v.MapIndex(key)
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true

	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= v.Len() {
			return nil, false
		}
		return v.Index(i).Interface(), true

	case reflect.Struct:
		return structField(v, segment)
	}

	return nil, false
}

// mapKey converts a path segment into a value usable as a key of keyType.
// Numeric keys are matched by their decimal form.
func mapKey(keyType reflect.Type, segment string) (reflect.Value, bool) {
	switch keyType.Kind() {
	case reflect.String:
		return reflect.ValueOf(segment).Convert(keyType), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(segment, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(segment, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Interface:
		if keyType.NumMethod() == 0 {
			return reflect.ValueOf(segment), true
		}
	}
	return reflect.Value{}, false
}

// structField finds an exported field by exact name, json tag, or
// case-insensitive name, in that order.
func structField(v reflect.Value, segment string) (any, bool) {
	t := v.Type()
	if f, ok := t.FieldByName(segment); ok && f.IsExported() {
		return v.FieldByIndex(f.Index).Interface(), true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name == segment {
			return v.Field(i).Interface(), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, segment) {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}

// Truthy reports whether v counts as true in a conditional. nil, false, numeric zero, "", "0" and empty collections
// are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// blank reports whether v renders as nothing and so falls through an echo
// fallback chain. Unlike Truthy, numeric zero is a value.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

// Stringify renders a resolved attribute value as template output.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// operand resolves one side of a conditional. Bare numbers that are not
// attribute keys resolve to themselves and are reported as numeric literals.
func operand(attrs map[string]any, token string) (value any, literal bool) {
	if v, ok := Lookup(attrs, token); ok {
		return v, false
	}
	if token == "" || (token[0] != '-' && (token[0] < '0' || token[0] > '9')) {
		return nil, false
	}
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, true
	}
	return nil, false
}

// numericLike converts a numeric literal to the numeric type of like when
// the value fits, so `n == 3` holds for n decoded as float64 or declared as
// int. Anything else is returned unchanged.
func numericLike(literal, like any) any {
	if literal == nil || like == nil {
		return literal
	}

	var f float64
	switch n := literal.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return literal
	}

	target := reflect.TypeOf(like)
	v := reflect.New(target).Elem()

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := literal.(int64)
		if !ok {
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return literal
			}
			i = int64(f)
		}
		if v.OverflowInt(i) {
			return literal
		}
		v.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
			return literal
		}
		u := uint64(f)
		if i, ok := literal.(int64); ok {
			u = uint64(i)
		}
		if v.OverflowUint(u) {
			return literal
		}
		v.SetUint(u)

	case reflect.Float32, reflect.Float64:
		if v.OverflowFloat(f) {
			return literal
		}
		v.SetFloat(f)

	default:
		return literal
	}
	return v.Interface()
}

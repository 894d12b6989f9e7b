// Package render converts arbitrary runtime values into a bounded,
// JSON-safe form for snapshot emission. Every value renders into one of
// four shapes: a primitive, a sequence, a mapping, or an opaque
// placeholder string. Rendering never panics.
package render

import (
	"fmt"
	"reflect"
	"sort"
)

// MaxDepth bounds recursion into nested containers. Values beyond the
// limit render as opaque placeholders instead of recursing further.
const MaxDepth = 8

// Value renders v into a JSON-safe representation.
func Value(v interface{}) interface{} {
	return renderValue(v, 0, make(map[uintptr]bool))
}

// Map renders every value in m, producing a stable JSON-safe mapping.
func Map(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}

func renderValue(v interface{}, depth int, seen map[uintptr]bool) (out interface{}) {
	// A value with a misbehaving Stringer or a reflect edge case must
	// never take the probe down with it.
	defer func() {
		if r := recover(); r != nil {
			out = opaque("unserializable", v)
		}
	}()

	if v == nil {
		return nil
	}
	if depth > MaxDepth {
		return opaque("depth", v)
	}

	switch val := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			ptr := rv.Pointer()
			if seen[ptr] {
				return opaque("cycle", v)
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		return renderValue(rv.Elem().Interface(), depth+1, seen)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && !rv.IsNil() && rv.Len() > 0 {
			ptr := rv.Pointer()
			if seen[ptr] {
				return opaque("cycle", v)
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		seq := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			seq[i] = renderValue(rv.Index(i).Interface(), depth+1, seen)
		}
		return seq

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return opaque("cycle", v)
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		keys := rv.MapKeys()
		rendered := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			rendered[stringifyKey(k)] = renderValue(rv.MapIndex(k).Interface(), depth+1, seen)
		}
		return rendered

	case reflect.Struct:
		mapping := make(map[string]interface{})
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			mapping[f.Name] = renderValue(rv.Field(i).Interface(), depth+1, seen)
		}
		return mapping

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("<%s>", rv.Type().String())

	default:
		// Remaining kinds (complex, uintptr, …) stringify as-is.
		return fmt.Sprint(v)
	}
}

// stringifyKey converts a map key into a deterministic string.
func stringifyKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

// opaque builds the placeholder for values that cannot be rendered.
func opaque(reason string, v interface{}) string {
	name := "nil"
	if v != nil {
		name = reflect.TypeOf(v).String()
	}
	if reason == "unserializable" {
		return fmt.Sprintf("<unserializable %s>", name)
	}
	return fmt.Sprintf("<%s>", name)
}

// SortedKeys returns the keys of a rendered mapping in stable order.
// Useful for deterministic display in the debugger views.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

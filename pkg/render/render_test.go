package render

import (
	"encoding/json"
	"reflect"
	"testing"
)

// TestRenderPrimitives verifies primitives pass through unchanged.
func TestRenderPrimitives(t *testing.T) {
	cases := []interface{}{"x", 42, 3.14, true, nil}
	for _, c := range cases {
		if got := Value(c); !reflect.DeepEqual(got, c) {
			t.Errorf("Value(%v) = %v, want unchanged", c, got)
		}
	}
}

// TestRenderNestedContainers verifies nested structures round-trip through
// JSON to an equivalent shape.
func TestRenderNestedContainers(t *testing.T) {
	in := map[string]interface{}{
		"a": []interface{}{1, 2, map[string]interface{}{"b": nil}},
	}
	got := Value(in)

	inJSON, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	gotJSON, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal rendered: %v", err)
	}
	if string(inJSON) != string(gotJSON) {
		t.Errorf("rendered %s, want %s", gotJSON, inJSON)
	}
}

// TestRenderOpaqueValues verifies non-data values render as placeholders
// and never panic.
func TestRenderOpaqueValues(t *testing.T) {
	fn := func() {}
	ch := make(chan int)

	for _, v := range []interface{}{fn, ch} {
		got := Value(v)
		s, ok := got.(string)
		if !ok {
			t.Fatalf("Value(%T) = %v, want placeholder string", v, got)
		}
		if len(s) < 2 || s[0] != '<' || s[len(s)-1] != '>' {
			t.Errorf("placeholder %q not of form <type>", s)
		}
	}
}

// TestRenderMapKeysStringified verifies non-string map keys become strings.
func TestRenderMapKeysStringified(t *testing.T) {
	got := Value(map[int]string{7: "seven"})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("Value = %T, want mapping", got)
	}
	if m["7"] != "seven" {
		t.Errorf("key 7 rendered as %v", m)
	}
}

// TestRenderCyclicStructure verifies the cycle guard terminates instead
// of recursing forever.
func TestRenderCyclicStructure(t *testing.T) {
	m := map[string]interface{}{}
	m["self"] = m

	got := Value(m)
	rendered, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("Value = %T, want mapping", got)
	}
	if _, ok := rendered["self"].(string); !ok {
		t.Errorf("cyclic reference rendered as %v, want opaque placeholder", rendered["self"])
	}
}

// TestRenderDepthLimit verifies deeply nested structures stop at MaxDepth.
func TestRenderDepthLimit(t *testing.T) {
	deep := interface{}(1)
	for i := 0; i < MaxDepth+5; i++ {
		deep = []interface{}{deep}
	}
	got := Value(deep)
	// Must terminate; spot-check it is still a sequence at the top.
	if _, ok := got.([]interface{}); !ok {
		t.Errorf("Value = %T, want sequence", got)
	}
}

// TestRenderStruct verifies exported struct fields become a mapping.
func TestRenderStruct(t *testing.T) {
	type point struct {
		X      int
		Y      int
		hidden string
	}
	got := Value(point{X: 1, Y: 2, hidden: "no"})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("Value = %T, want mapping", got)
	}
	if m["X"] != 1 || m["Y"] != 2 {
		t.Errorf("struct rendered as %v", m)
	}
	if _, ok := m["hidden"]; ok {
		t.Errorf("unexported field leaked into %v", m)
	}
}

package diagram

import (
	"strings"
	"testing"
)

var graph = map[string][]string{
	"/main.go::Handler": {"/main.go::Process", "/svc/svc.go::Scale"},
	"/main.go::Process": {"helper"},
}

var parents = []string{"/main.go::Handler"}

// TestGenerateMermaid verifies nodes, edges, and root highlighting.
func TestGenerateMermaid(t *testing.T) {
	out, err := Generate(graph, parents, FormatMermaid)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(out, "flowchart TD") {
		t.Errorf("missing flowchart header:\n%s", out)
	}
	for _, want := range []string{
		`_main_go__Handler --> _main_go__Process`,
		`"main.go::Handler"`,
		`"svc/svc.go::Scale"`,
		`style _main_go__Handler`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

// TestGenerateASCII verifies the box and the indented call tree.
func TestGenerateASCII(t *testing.T) {
	out, err := Generate(graph, parents, FormatASCII)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "│ main.go::Handler │") {
		t.Errorf("root box missing:\n%s", out)
	}
	if !strings.Contains(out, "  → main.go::Process") {
		t.Errorf("first-level call missing:\n%s", out)
	}
	if !strings.Contains(out, "    → helper") {
		t.Errorf("nested call missing:\n%s", out)
	}
}

// TestGenerateASCIICycle verifies mutually recursive functions do not
// loop the renderer.
func TestGenerateASCIICycle(t *testing.T) {
	cyclic := map[string][]string{
		"/a.go::Ping": {"/a.go::Pong"},
		"/a.go::Pong": {"/a.go::Ping"},
	}
	out, err := Generate(cyclic, []string{"/a.go::Ping"}, FormatASCII)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Count(out, "→ a.go::Pong") != 1 {
		t.Errorf("cycle not cut:\n%s", out)
	}
}

// TestGenerateErrors verifies bad input is rejected.
func TestGenerateErrors(t *testing.T) {
	if _, err := Generate(nil, nil, FormatASCII); err == nil {
		t.Error("expected error for empty graph")
	}
	if _, err := Generate(graph, parents, Format("dot")); err == nil {
		t.Error("expected error for unknown format")
	}
}

// Package diagram renders the changed-function call graph as a visual
// diagram. Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram of graph. Parents are the root functions
// and get highlighted; edges follow resolved calls.
func Generate(graph map[string][]string, parents []string, format Format) (string, error) {
	if len(graph) == 0 {
		return "", fmt.Errorf("empty call graph")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(graph, parents), nil
	case FormatASCII:
		return generateASCII(graph, parents), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(graph map[string][]string, parents []string) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, id := range sortedKeys(graph) {
		b.WriteString(fmt.Sprintf("    %s[%q]\n", safeID(id), displayName(id)))
		for _, call := range graph[id] {
			b.WriteString(fmt.Sprintf("    %s --> %s[%q]\n",
				safeID(id), safeID(call), displayName(call)))
		}
	}

	for _, p := range parents {
		if _, ok := graph[p]; ok {
			b.WriteString(fmt.Sprintf("    style %s stroke-width:3px\n", safeID(p)))
		}
	}
	return b.String()
}

// --- ASCII ---

func generateASCII(graph map[string][]string, parents []string) string {
	var b strings.Builder

	roots := parents
	if len(roots) == 0 {
		roots = sortedKeys(graph)
	}

	for _, root := range roots {
		writeBox(&b, displayName(root))
		seen := map[string]bool{root: true}
		writeCalls(&b, graph, root, 1, seen)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// writeBox draws one root function in a box sized to its name.
func writeBox(b *strings.Builder, name string) {
	w := runewidth.StringWidth(name) + 2
	b.WriteString("┌" + strings.Repeat("─", w) + "┐\n")
	b.WriteString("│ " + name + " │\n")
	b.WriteString("└" + strings.Repeat("─", w) + "┘\n")
}

// writeCalls lists a function's calls as an indented arrow tree,
// recursing into calls that are themselves changed functions.
func writeCalls(b *strings.Builder, graph map[string][]string, id string, depth int, seen map[string]bool) {
	for _, call := range graph[id] {
		b.WriteString(strings.Repeat("  ", depth) + "→ " + displayName(call) + "\n")
		if seen[call] {
			continue
		}
		seen[call] = true
		if _, ok := graph[call]; ok {
			writeCalls(b, graph, call, depth+1, seen)
		}
	}
}

// displayName strips the leading slash from qualified ids; plain call
// names pass through.
func displayName(id string) string {
	return strings.TrimPrefix(id, "/")
}

func safeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func sortedKeys(graph map[string][]string) []string {
	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

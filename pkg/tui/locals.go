package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/flowlens/flowlens/pkg/render"
	"github.com/flowlens/flowlens/pkg/schema"
)

// statePanel renders the captured locals and globals of a snapshot.
type statePanel struct {
	width  int
	height int
}

func (p statePanel) render(snap *schema.Snapshot) string {
	var b strings.Builder
	b.WriteString(panelTitle.Render("state"))
	b.WriteString("\n")

	if snap == nil {
		b.WriteString(keyDescStyle.Render("  no event yet"))
		return panelBorder.Width(p.width).Height(p.height).Render(b.String())
	}

	writeSection := func(title string, vars map[string]interface{}) {
		if len(vars) == 0 {
			return
		}
		b.WriteString(keyDescStyle.Render(" " + title))
		b.WriteString("\n")
		for _, name := range render.SortedKeys(vars) {
			b.WriteString("  ")
			b.WriteString(localName.Render(name))
			b.WriteString(" = ")
			b.WriteString(localValue.Render(p.formatValue(vars[name], runewidth.StringWidth(name))))
			b.WriteString("\n")
		}
	}
	writeSection("locals", snap.Locals)
	writeSection("globals", snap.Globals)

	if snap.Error != "" {
		b.WriteString(statusBad.Render(" " + snap.Error))
		b.WriteString("\n")
	}
	return panelBorder.Width(p.width).Height(p.height).Render(b.String())
}

// formatValue renders one captured value on a single line, truncated
// to the panel width.
func (p statePanel) formatValue(v interface{}, used int) string {
	var text string
	if data, err := json.Marshal(v); err == nil {
		text = string(data)
	} else {
		text = fmt.Sprintf("%v", v)
	}
	text = strings.ReplaceAll(text, "\n", " ")

	avail := p.width - used - 8
	if avail < 8 {
		avail = 8
	}
	return runewidth.Truncate(text, avail, "…")
}

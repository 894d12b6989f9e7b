package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all TUI key bindings.
type keyMap struct {
	Step   key.Binding
	Go     key.Binding
	Up     key.Binding
	Down   key.Binding
	PgUp   key.Binding
	PgDown key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Step: key.NewBinding(
		key.WithKeys("n", "enter"),
		key.WithHelp("n", "next line"),
	),
	Go: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "go to line"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "page up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "page down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(waiting, terminal, entering bool) string {
	if entering {
		return keyStyle.Render("Enter") + keyDescStyle.Render(":continue") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
	}
	if terminal {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":scroll") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	if waiting {
		return keyDescStyle.Render("waiting for the target…") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	return keyStyle.Render("n") + keyDescStyle.Render(":next line") + "  " +
		keyStyle.Render("g") + keyDescStyle.Render(":go to line") + "  " +
		keyStyle.Render("↑↓") + keyDescStyle.Render(":scroll") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit")
}

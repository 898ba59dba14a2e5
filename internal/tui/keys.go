package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings for the search screen
type KeyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Favorite key.Binding
	Type     key.Binding
	Sort     key.Binding
	More     key.Binding
}

// DefaultKeyMap returns the default search screen bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑/C-p", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓/C-n", "next"),
		),
		Favorite: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "favorite"),
		),
		Type: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "type"),
		),
		Sort: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "sort"),
		),
		More: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+l"),
			key.WithHelp("PgDn", "more"),
		),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Favorite, k.Type, k.Sort, k.More, k.Quit}
}

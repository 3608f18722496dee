package browse

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Methods key.Binding
	Fields  key.Binding
	Left    key.Binding
	Right   key.Binding
	Enter   key.Binding
	Back    key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

func k(keys []string, help, desc string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(help, desc),
	)
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Methods: k([]string{"1"}, "1", "methods"),
		Fields:  k([]string{"2"}, "2", "fields"),
		Left:    k([]string{"left", "h"}, "←/h", "prev tab"),
		Right:   k([]string{"right", "l"}, "→/l", "next tab"),
		Enter:   k([]string{"enter"}, "enter", "details"),
		Back:    k([]string{"esc"}, "esc", "back"),
		Copy:    k([]string{"c"}, "c", "copy name"),
		Quit:    k([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}

func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Enter, km.Back, km.Left, km.Right, km.Copy, km.Quit}
}

func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Methods, km.Fields, km.Left, km.Right},
		{km.Enter, km.Back, km.Copy, km.Quit},
	}
}

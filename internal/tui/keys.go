package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the chat UI responds to.
type KeyMap struct {
	Send       key.Binding
	CancelSend key.Binding
	Retry      key.Binding
	NewConv    key.Binding
	DeleteConv key.Binding
	Undo       key.Binding
	OlderPage  key.Binding
	SwitchPane key.Binding
	Up         key.Binding
	Down       key.Binding
	Quit       key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		CancelSend: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel send")),
		Retry:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry failed send")),
		NewConv:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new conversation")),
		DeleteConv: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete conversation")),
		Undo:       key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "undo delete")),
		OlderPage:  key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "older messages")),
		SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up", "previous conversation")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down", "next conversation")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle  key.Binding
	Delete  key.Binding
	Add     key.Binding
	SignOut key.Binding
	Quit    key.Binding
	Submit  key.Binding
	Cancel  key.Binding
	Next    key.Binding
	Dismiss key.Binding
}

var keys = keyMap{
	Toggle:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Add:     key.NewBinding(key.WithKeys("a", "n"), key.WithHelp("a", "add")),
	SignOut: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sign out")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Next:    key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "next field")),
	Dismiss: key.NewBinding(key.WithKeys("enter", "esc", " ", "space"), key.WithHelp("enter", "dismiss")),
}

// forceQuit works in every view, including while typing.
var forceQuit = key.NewBinding(key.WithKeys("ctrl+c"))

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit        key.Binding
	ClearInput  key.Binding
	Submit      key.Binding
	HistoryUp   key.Binding
	HistoryDown key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Buffers     []key.Binding // indexed like buffer.All
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:        key.NewBinding(key.WithKeys("ctrl+c")),
		ClearInput:  key.NewBinding(key.WithKeys("ctrl+u")),
		Submit:      key.NewBinding(key.WithKeys("enter")),
		HistoryUp:   key.NewBinding(key.WithKeys("up")),
		HistoryDown: key.NewBinding(key.WithKeys("down")),
		PageUp:      key.NewBinding(key.WithKeys("pgup")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown")),
		Top:         key.NewBinding(key.WithKeys("home")),
		Bottom:      key.NewBinding(key.WithKeys("end")),
		Buffers: []key.Binding{
			key.NewBinding(key.WithKeys("alt+1")),
			key.NewBinding(key.WithKeys("alt+2")),
			key.NewBinding(key.WithKeys("alt+3")),
		},
	}
}

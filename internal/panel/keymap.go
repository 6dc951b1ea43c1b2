package panel

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ZeroiJ/hub/internal/keys"
)

// KeyMap holds the keys the host keeps for itself. Everything else goes to
// the shell.
type KeyMap struct {
	Detach key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Detach: key.NewBinding(
			key.WithKeys("ctrl+\\"),
			key.WithHelp("ctrl+\\", "detach"),
		),
	}
}

// translateKey turns a bubbletea key message into the events to send to the
// shell. Alt-modified keys are prefixed with ESC, the usual meta encoding.
// Keys the encoder has no bytes for produce no events.
func translateKey(msg tea.KeyMsg) []keys.Event {
	var evs []keys.Event
	if msg.Alt {
		evs = append(evs, keys.Named(keys.KeyEscape))
	}

	if msg.Type == tea.KeyRunes {
		for _, r := range msg.Runes {
			evs = append(evs, keys.Char(r))
		}
		return evs
	}
	if msg.Type == tea.KeySpace {
		return append(evs, keys.Named(keys.KeySpace))
	}

	k := msg
	k.Alt = false
	ev, ok := keys.Parse(k.String())
	if !ok {
		return nil
	}
	return append(evs, ev)
}

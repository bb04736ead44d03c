package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the hand control key bindings
type KeyMap struct {
	// Selection
	Up       key.Binding
	Down     key.Binding
	NextAxis key.Binding

	// Manual motion
	Nudge     key.Binding
	NudgeBack key.Binding
	Drive     key.Binding
	DriveBack key.Binding
	Stop      key.Binding
	StopAll   key.Binding

	// Positions
	NextSlot   key.Binding
	PrevSlot   key.Binding
	Save       key.Binding
	Load       key.Binding
	NextPreset key.Binding
	Preset     key.Binding
	Reverse    key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous target"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next target"),
		),
		NextAxis: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next axis"),
		),
		Nudge: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "nudge +"),
		),
		NudgeBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "nudge -"),
		),
		Drive: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "drive +"),
		),
		DriveBack: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "drive -"),
		),
		Stop: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "stop"),
		),
		StopAll: key.NewBinding(
			key.WithKeys("esc", "x"),
			key.WithHelp("esc/x", "stop all"),
		),
		NextSlot: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next slot"),
		),
		PrevSlot: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous slot"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save slot"),
		),
		Load: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "load slot"),
		),
		NextPreset: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next preset"),
		),
		Preset: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "load preset"),
		),
		Reverse: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reverse"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns a short help string
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Drive, k.DriveBack, k.Stop, k.StopAll, k.Help, k.Quit}
}

// FullHelp returns the full help string
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextAxis},
		{k.Nudge, k.NudgeBack, k.Drive, k.DriveBack, k.Stop, k.StopAll},
		{k.PrevSlot, k.NextSlot, k.Save, k.Load},
		{k.NextPreset, k.Preset, k.Reverse, k.Help, k.Quit},
	}
}

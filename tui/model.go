// Package tui is an on-screen hand control for the table built on Bubble Tea.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"optable/kinematics"
	"optable/motion"
	"optable/table"
)

const barWidth = 20

type tickMsg time.Time

// Options tunes the hand control
type Options struct {
	// Refresh is the redraw interval while idle or moving
	Refresh time.Duration
	// AngleStep and LinearStep are the nudge sizes for one key press
	AngleStep  float64
	LinearStep float64
}

// DefaultOptions returns one degree and one centimetre per nudge
func DefaultOptions() Options {
	return Options{
		Refresh:    100 * time.Millisecond,
		AngleStep:  1,
		LinearStep: 0.01,
	}
}

// Model is the Bubble Tea model for the hand control
type Model struct {
	tbl    *table.Table
	opts   Options
	logger *slog.Logger

	keys KeyMap
	help help.Model

	targets []string
	cursor  int
	axis    map[string]int // selected label index per joint
	slot    int
	presets []string
	preset  int

	message string
	failed  bool
}

// New creates the hand control model for tbl
func New(tbl *table.Table, opts Options, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		tbl:     tbl,
		opts:    opts,
		logger:  logger,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		targets: tbl.Targets(),
		axis:    make(map[string]int),
		presets: tbl.Presets(),
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses and refresh ticks
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.tbl.StopAll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.targets)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.NextAxis):
		if j, ok := m.tbl.Joint(m.target()); ok && len(j.Labels()) > 0 {
			m.axis[m.target()] = (m.axis[m.target()] + 1) % len(j.Labels())
		}
	case key.Matches(msg, m.keys.Nudge):
		m.nudge(1)
	case key.Matches(msg, m.keys.NudgeBack):
		m.nudge(-1)
	case key.Matches(msg, m.keys.Drive):
		m.drive(1)
	case key.Matches(msg, m.keys.DriveBack):
		m.drive(-1)
	case key.Matches(msg, m.keys.Stop):
		m.report(m.tbl.Stop(m.target()), "stopped "+m.target())
	case key.Matches(msg, m.keys.StopAll):
		m.tbl.StopAll()
		m.report(nil, "all motion stopped")
	case key.Matches(msg, m.keys.NextSlot):
		m.slot = (m.slot + 1) % len(m.tbl.Slots())
	case key.Matches(msg, m.keys.PrevSlot):
		n := len(m.tbl.Slots())
		m.slot = (m.slot + n - 1) % n
	case key.Matches(msg, m.keys.Save):
		m.report(m.tbl.Save(m.slot, ""), fmt.Sprintf("saved slot %d", m.slot))
	case key.Matches(msg, m.keys.Load):
		m.report(m.tbl.Load(m.slot, m.restored), fmt.Sprintf("restoring slot %d", m.slot))
	case key.Matches(msg, m.keys.NextPreset):
		if len(m.presets) > 0 {
			m.preset = (m.preset + 1) % len(m.presets)
		}
	case key.Matches(msg, m.keys.Preset):
		if len(m.presets) > 0 {
			name := m.presets[m.preset]
			m.report(m.tbl.LoadPreset(name, m.restored), "restoring "+name)
		}
	case key.Matches(msg, m.keys.Reverse):
		on := !m.tbl.Reversed()
		m.report(m.tbl.SetReversed(on), fmt.Sprintf("reversed %v", on))
	}
	return m, nil
}

func (m Model) target() string {
	if len(m.targets) == 0 {
		return ""
	}
	return m.targets[m.cursor]
}

// direction returns the unit vector for the selected axis of the current
// target scaled by sgn
func (m Model) direction(sgn float64) (r3.Vec, kinematics.Kind) {
	name := m.target()
	if j, ok := m.tbl.Joint(name); ok && len(j.Labels()) > 0 {
		labels := j.Labels()
		l := labels[m.axis[name]%len(labels)]
		return r3.Scale(sgn, l.Unit()), j.Axis(l).Kind()
	}
	if tel, ok := m.tbl.Telescope(name); ok {
		return r3.Scale(sgn, tel.Direction()), kinematics.Linear
	}
	return r3.Vec{}, kinematics.Angular
}

func (m *Model) nudge(sgn float64) {
	dir, kind := m.direction(sgn)
	delta := m.opts.AngleStep
	if kind == kinematics.Linear {
		delta = m.opts.LinearStep
	}
	ok, err := m.tbl.Nudge(m.target(), dir, delta)
	if err == nil && !ok {
		m.message, m.failed = m.target()+": limit reached", true
		return
	}
	m.report(err, "")
}

func (m *Model) drive(sgn float64) {
	dir, _ := m.direction(sgn)
	m.report(m.tbl.StartContinuous(m.target(), dir), "moving "+m.target())
}

// restored runs on the scheduler, so it only logs
func (m Model) restored(r motion.Report) {
	m.logger.Info("tui: restore finished", "target", r.Target, "complete", r.Complete())
}

func (m *Model) report(err error, ok string) {
	switch {
	case errors.Is(err, table.ErrRestoring):
		m.message, m.failed = "busy: restore in progress", true
	case err != nil:
		m.message, m.failed = err.Error(), true
	default:
		m.message, m.failed = ok, false
	}
}

// View renders the hand control
func (m Model) View() string {
	sections := []string{
		HeaderStyle.Render("Operating table"),
		PanelStyle.Render(m.viewTargets()),
		PanelStyle.Render(m.viewPositions()),
		m.viewStatus(),
	}
	if m.message != "" {
		style := DimStyle
		if m.failed {
			style = ErrorStyle
		}
		sections = append(sections, StatusBarStyle.Render(style.Render(m.message)))
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewTargets() string {
	var lines []string
	lines = append(lines, PanelTitleStyle.Render("Targets"))

	for i, name := range m.targets {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}

		var rows []string
		if j, ok := m.tbl.Joint(name); ok && len(j.Labels()) > 0 {
			labels := j.Labels()
			sel := m.axis[name] % len(labels)
			shown := name
			for k, l := range labels {
				a := j.Axis(l)
				row := fmt.Sprintf("%-10s %-2s %s %9.3f", shown, l, bar(a.Current(), a.Limits()), a.Current())
				rows = append(rows, m.styleRow(row, i == m.cursor && k == sel, a.Enabled(), name))
				shown = ""
			}
		} else if tel, ok := m.tbl.Telescope(name); ok {
			row := fmt.Sprintf("%-10s %-2s %s %9.3f", name, "", bar(tel.Value(), tel.Limits()), tel.Value())
			rows = append(rows, m.styleRow(row, i == m.cursor, true, name))
		}
		for k, r := range rows {
			if k == 0 {
				lines = append(lines, prefix+r)
			} else {
				lines = append(lines, "  "+r)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) styleRow(row string, selected, enabled bool, target string) string {
	switch {
	case !enabled:
		return DisabledStyle.Render(row + " off")
	case selected:
		return SelectedStyle.Render(row)
	case m.tbl.IsActive(target):
		return MovingStyle.Render(row)
	default:
		return row
	}
}

func (m Model) viewPositions() string {
	slots := m.tbl.Slots()
	var lines []string
	lines = append(lines, PanelTitleStyle.Render("Positions"))

	s := slots[m.slot%len(slots)]
	name := s.Name
	if name == "" {
		name = "empty"
	}
	if s.Locked {
		name += " (locked)"
	}
	lines = append(lines, fmt.Sprintf("slot %d/%d: %s", s.Index, len(slots)-1, name))

	if len(m.presets) > 0 {
		lines = append(lines, "preset: "+m.presets[m.preset])
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewStatus() string {
	st := m.tbl.Status()
	parts := []string{fmt.Sprintf("deformation %3.0f%%", st.Deformation)}
	if st.Reversed {
		parts = append(parts, WarningStyle.Render("REVERSED"))
	}
	if st.Restoring {
		parts = append(parts, WarningStyle.Render("RESTORING"))
	}
	if len(st.Active) > 0 {
		parts = append(parts, MovingStyle.Render("moving: "+strings.Join(st.Active, ", ")))
	}
	return StatusBarStyle.Render(strings.Join(parts, " | "))
}

// bar draws v's position between its limits
func bar(v float64, l kinematics.Limits) string {
	span := l.Max - l.Min
	filled := 0
	if span > 0 {
		filled = int(math.Round((v - l.Min) / span * barWidth))
	}
	filled = max(0, min(barWidth, filled))
	return BarFillStyle.Render(strings.Repeat("█", filled)) +
		BarEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

var _ tea.Model = Model{}

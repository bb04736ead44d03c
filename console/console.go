// Package console is a line-oriented command interpreter over the table
// API. It drives the same operations as the hand control and the TUI.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"gonum.org/v1/gonum/spatial/r3"

	"optable/kinematics"
	"optable/table"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrQuit           = errors.New("quit")
)

// Prompt is written before each line in interactive mode
const Prompt = "optable> "

type command struct {
	args string
	help string
	min  int
	max  int // -1 for no upper bound
	run  func(c *Console, args []string) error
}

// Console executes command lines against a table
type Console struct {
	tbl    *table.Table
	out    io.Writer
	logger *slog.Logger

	commands map[string]command
}

// New creates a console writing replies to out
func New(tbl *table.Table, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		tbl:    tbl,
		out:    out,
		logger: logger,
	}
	c.commands = commands()
	return c
}

// Exec runs one command line. Blank lines and lines starting with # are
// ignored. ErrQuit is returned for quit and exit.
func (c *Console) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	words, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil
	}

	name := strings.ToLower(words[0])
	args := words[1:]
	if name == "quit" || name == "exit" {
		return ErrQuit
	}
	if name == "help" || name == "?" {
		c.help()
		return nil
	}

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownCommand)
	}
	if len(args) < cmd.min || (cmd.max >= 0 && len(args) > cmd.max) {
		return fmt.Errorf("%w: %s %s", ErrUsage, name, cmd.args)
	}

	c.logger.Debug("console: exec", "cmd", name, "args", args)
	return cmd.run(c, args)
}

// Run reads lines from in until EOF, quit or ctx is done. Command errors are
// reported to the output and do not end the session.
func (c *Console) Run(ctx context.Context, in io.Reader, interactive bool) error {
	sc := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(c.out, Prompt)
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Exec(sc.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) help() {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := c.commands[name]
		c.printf("  %-28s %s\n", strings.TrimSpace(name+" "+cmd.args), cmd.help)
	}
	c.printf("  %-28s %s\n", "quit", "leave the console")
}

// ParseDirection reads a direction as an axis name with optional sign
// ("x", "-y", "+z") or as three comma separated components ("1,0.2,0").
func ParseDirection(s string) (r3.Vec, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return r3.Vec{}, fmt.Errorf("direction %q: need three components", s)
		}
		var v [3]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return r3.Vec{}, fmt.Errorf("direction %q: %w", s, err)
			}
			v[i] = f
		}
		return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
	}

	sgn := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sgn, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	l := kinematics.ParseLabel(strings.ToLower(s))
	if l == kinematics.Unknown {
		return r3.Vec{}, fmt.Errorf("direction %q: %w", s, table.ErrNoAxis)
	}
	return r3.Scale(sgn, l.Unit()), nil
}

func parseSlot(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("slot %q: %w", s, err)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", s, err)
	}
	return f, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%q: %w: expected on or off", s, ErrUsage)
}

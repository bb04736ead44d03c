// Command pendant sends hand control requests to a table over a serial line,
// for bench testing the wiring without the physical pendant.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"optable/host/serial"
	"optable/kinematics"
	"optable/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate")
	timeout = flag.Duration("timeout", protocol.DefaultTimeout, "Ack and status timeout")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conn := protocol.NewConn(port, logger)
	defer conn.Close()
	conn.SetTimeout(*timeout)

	start := time.Now()
	st, err := conn.Send(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %s (%v)\n", cmd.ID, st.Result, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  restoring:   %v\n", st.Restoring)
	fmt.Printf("  reversed:    %v\n", st.Reversed)
	fmt.Printf("  deformation: %d%%\n", st.Deformation)
	fmt.Printf("  moving:      %d\n", st.Active)
	if st.Result != protocol.ResultOK {
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: pendant [flags] <command> [args]

Commands:
  press <target> <[+-]x|y|z>   start moving a target
  release <target>             stop a target
  stopall                      stop all motion
  recall <slot>                restore a stored position
  store <slot> [name]          store the current position
  preset <name>                restore a preset
  reverse on|off               set orientation reversal

Flags:
`)
	flag.PrintDefaults()
}

func parseCommand(args []string) (protocol.Command, error) {
	if len(args) == 0 {
		return protocol.Command{}, fmt.Errorf("no command given")
	}

	need := func(n int) error {
		if len(args)-1 < n {
			return fmt.Errorf("%s needs %d argument(s)", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "press":
		if err := need(2); err != nil {
			return protocol.Command{}, err
		}
		axis, err := parseAxis(args[2])
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{ID: protocol.MsgButton, Target: args[1], Axis: axis, Pressed: true}, nil
	case "release":
		if err := need(1); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{ID: protocol.MsgButton, Target: args[1]}, nil
	case "stopall":
		return protocol.Command{ID: protocol.MsgStopAll}, nil
	case "recall", "store":
		if err := need(1); err != nil {
			return protocol.Command{}, err
		}
		slot, err := strconv.Atoi(args[1])
		if err != nil {
			return protocol.Command{}, fmt.Errorf("invalid slot %q: %w", args[1], err)
		}
		if args[0] == "recall" {
			return protocol.Command{ID: protocol.MsgRecall, Slot: int32(slot)}, nil
		}
		return protocol.Command{ID: protocol.MsgStore, Slot: int32(slot), Name: strings.Join(args[2:], " ")}, nil
	case "preset":
		if err := need(1); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{ID: protocol.MsgPreset, Name: strings.Join(args[1:], " ")}, nil
	case "reverse":
		if err := need(1); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{ID: protocol.MsgReverse, On: args[1] == "on"}, nil
	}
	return protocol.Command{}, fmt.Errorf("unknown command %q", args[0])
}

// parseAxis turns "x", "+y" or "-z" into a signed axis label
func parseAxis(s string) (int32, error) {
	sgn := int32(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sgn, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	l := kinematics.ParseLabel(s)
	if l == kinematics.Unknown {
		return 0, fmt.Errorf("invalid axis %q", s)
	}
	return sgn * int32(l), nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"optable/config"
	"optable/console"
	"optable/core"
	"optable/host/handset"
	"optable/host/i2c"
	"optable/host/serial"
	"optable/sensor"
	"optable/table"
	"optable/tui"
)

var (
	configPath = flag.String("config", "", "Table config file (.json, .yaml); built-in table if empty")
	useTUI     = flag.Bool("tui", false, "Run the on-screen hand control instead of the console")
	handsetDev = flag.String("handset", "", "Serial device of the hand control pendant (overrides config)")
	useSensor  = flag.Bool("sensor", false, "Seed base angles from the accelerometer (overrides config)")
	script     = flag.String("script", "", "Run console commands from a file and exit")
	logPath    = flag.String("log", "", "Write logs to this file instead of stderr")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.DefaultTableConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *handsetDev != "" {
		cfg.Handset.Device = *handsetDev
	}
	if *useSensor {
		cfg.Sensor.Enabled = true
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var seeder table.Seeder
	if cfg.Sensor.Enabled {
		bus, err := i2c.Open(cfg.Sensor.Device)
		if err != nil {
			logger.Warn("optable: accelerometer unavailable, using configured angles", "device", cfg.Sensor.Device, "error", err)
		} else {
			defer bus.Close()
			seeder = sensor.NewADXL345(bus, cfg.Sensor.Address, cfg.Sensor.Pitch, cfg.Sensor.Roll, logger)
		}
	}

	sched := core.NewScheduler()
	tbl, err := table.New(cfg, sched, seeder, logger)
	if err != nil {
		return fmt.Errorf("failed to build table %q: %w", cfg.Name, err)
	}
	logger.Info("optable: table ready", "name", cfg.Name, "channels", len(tbl.Channels()))

	go func() {
		if err := sched.Run(ctx, core.DefaultResolution); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("optable: scheduler stopped", "error", err)
		}
	}()

	if cfg.Handset.Device != "" {
		port, err := serial.Open(&serial.Config{
			Device:      cfg.Handset.Device,
			Baud:        cfg.Handset.Baud,
			ReadTimeout: cfg.Handset.GetReadTimeout(),
		})
		if err != nil {
			return err
		}
		link := handset.NewLink(port, tbl, logger)
		go func() {
			if err := link.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("optable: handset link failed", "error", err)
			}
		}()
	}

	switch {
	case *script != "":
		f, err := os.Open(*script)
		if err != nil {
			return err
		}
		defer f.Close()
		return console.New(tbl, os.Stdout, logger).Run(ctx, f, false)

	case *useTUI:
		p := tea.NewProgram(tui.New(tbl, tui.DefaultOptions(), logger), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err

	default:
		fmt.Printf("optable - %s (type 'help' for commands, 'quit' to exit)\n", cfg.Name)
		done := make(chan error, 1)
		go func() {
			done <- console.New(tbl, os.Stdout, logger).Run(ctx, os.Stdin, true)
		}()

		select {
		case err = <-done:
		case <-ctx.Done():
			fmt.Println()
		}
		tbl.StopAll()
		return err
	}
}

// newLogger builds the process logger. The TUI owns the terminal, so its
// logs go to -log or nowhere.
func newLogger(cfg *config.TableConfig) (*slog.Logger, func(), error) {
	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}

	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	switch {
	case *logPath != "":
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closeFn = f, func() { f.Close() }
	case *useTUI:
		out = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

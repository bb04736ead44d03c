// Package serial opens the serial line the hand control pendant is wired to.
package serial

import (
	"io"
	"time"
)

// Port is an open serial line. Native ports and in-memory pipes used by
// tests both satisfy it.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// ReadTimeout bounds each read so the link can notice shutdown
	// (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the pendant's default line settings
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

//go:build linux

package i2c

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the i2c-dev ioctl selecting the target address
const i2cSlave = 0x0703

// DevBus is an I2C bus backed by a /dev/i2c-N character device
type DevBus struct {
	mu   sync.Mutex
	file *os.File
	addr uint16
	set  bool
}

// Open opens an i2c-dev character device such as /dev/i2c-1
func Open(device string) (Bus, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c device %s: %w", device, err)
	}
	return &DevBus{file: f}, nil
}

// Tx writes w to the device at addr and then reads len(r) bytes back
func (b *DevBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(int(b.file.Fd()), i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("select i2c address %#x: %w", addr, err)
		}
		b.addr, b.set = addr, true
	}

	if len(w) > 0 {
		if _, err := b.file.Write(w); err != nil {
			return fmt.Errorf("i2c write %#x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := io.ReadFull(b.file, r); err != nil {
			return fmt.Errorf("i2c read %#x: %w", addr, err)
		}
	}
	return nil
}

// Close closes the character device
func (b *DevBus) Close() error {
	return b.file.Close()
}

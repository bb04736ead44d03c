// Package i2c provides an I2C bus over the Linux i2c-dev interface so host
// builds can talk to the same sensor drivers the microcontroller targets use.
package i2c

import (
	"errors"

	"tinygo.org/x/drivers"
)

var ErrUnsupported = errors.New("i2c-dev is only available on linux")

// Bus is an I2C bus that can be closed
type Bus interface {
	drivers.I2C
	Close() error
}

// Package sensor reads the table base inclination from an accelerometer so
// the model can start from the real trend and tilt angles.
package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/adxl345"
)

var ErrNoGravity = errors.New("accelerometer reports no gravity vector")

// DefaultSamples is the number of readings averaged per measurement
const DefaultSamples = 8

// Accelerometer returns acceleration on three axes in any consistent unit
type Accelerometer interface {
	ReadAcceleration() (x, y, z int32, err error)
}

// TiltSensor converts accelerometer readings into pitch and roll angles in
// degrees. Pitch seeds one channel and roll another.
type TiltSensor struct {
	dev     Accelerometer
	pitch   string
	roll    string
	samples int
	logger  *slog.Logger

	once   sync.Once
	angles [2]float64
	err    error
}

// New creates a tilt sensor over dev. pitchChannel and rollChannel name the
// channels Seed answers for; either may be empty.
func New(dev Accelerometer, pitchChannel, rollChannel string, logger *slog.Logger) *TiltSensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TiltSensor{
		dev:     dev,
		pitch:   pitchChannel,
		roll:    rollChannel,
		samples: DefaultSamples,
		logger:  logger,
	}
}

// NewADXL345 configures an ADXL345 at address on bus and wraps it
func NewADXL345(bus drivers.I2C, address uint16, pitchChannel, rollChannel string, logger *slog.Logger) *TiltSensor {
	dev := adxl345.New(bus)
	if address != 0 {
		dev.Address = address
	}
	dev.Configure()
	return New(&dev, pitchChannel, rollChannel, logger)
}

// Angles takes a fresh averaged measurement and returns pitch and roll in
// degrees. Pitch is rotation about the sensor's Y axis, roll about X.
func (s *TiltSensor) Angles() (pitch, roll float64, err error) {
	var sx, sy, sz float64
	for i := 0; i < s.samples; i++ {
		x, y, z, err := s.dev.ReadAcceleration()
		if err != nil {
			return 0, 0, fmt.Errorf("read acceleration: %w", err)
		}
		sx += float64(x)
		sy += float64(y)
		sz += float64(z)
	}
	n := float64(s.samples)
	return Tilt(sx/n, sy/n, sz/n)
}

// Tilt computes pitch and roll in degrees from a gravity vector
func Tilt(x, y, z float64) (pitch, roll float64, err error) {
	if x == 0 && y == 0 && z == 0 {
		return 0, 0, ErrNoGravity
	}
	pitch = math.Atan2(-x, math.Hypot(y, z)) * 180 / math.Pi
	roll = math.Atan2(y, z) * 180 / math.Pi
	return pitch, roll, nil
}

// Seed returns the measured angle for the pitch or roll channel. The sensor
// is read once; later calls reuse that measurement.
func (s *TiltSensor) Seed(channel string) (float64, bool) {
	if channel == "" || (channel != s.pitch && channel != s.roll) {
		return 0, false
	}

	s.once.Do(func() {
		pitch, roll, err := s.Angles()
		s.angles, s.err = [2]float64{pitch, roll}, err
		if err != nil {
			s.logger.Warn("sensor: tilt measurement failed, using configured values", "error", err)
			return
		}
		s.logger.Info("sensor: base inclination measured", "pitch", pitch, "roll", roll)
	})
	if s.err != nil {
		return 0, false
	}

	if channel == s.pitch {
		return s.angles[0], true
	}
	return s.angles[1], true
}

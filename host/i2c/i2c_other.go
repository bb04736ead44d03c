//go:build !linux

package i2c

// Open always fails outside linux
func Open(device string) (Bus, error) {
	return nil, ErrUnsupported
}

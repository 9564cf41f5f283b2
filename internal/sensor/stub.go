//go:build !linux

package sensor

import "errors"

// I2CBus is not available on non-Linux platforms.
type I2CBus struct{}

// NewI2CBus returns an error on non-Linux platforms.
func NewI2CBus() (*I2CBus, error) {
	return nil, errors.New("i2c: not supported on this platform (requires Linux)")
}

// ReadBytes is not implemented on non-Linux platforms.
func (b *I2CBus) ReadBytes(addr byte, n int) ([]byte, error) {
	return nil, errors.New("i2c: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *I2CBus) Close() error {
	return nil
}

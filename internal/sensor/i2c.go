//go:build linux

package sensor

import (
	"fmt"

	"github.com/reef-pi/rpi/i2c"
)

// I2CBus reads from the Raspberry Pi I2C bus.
type I2CBus struct {
	bus i2c.Bus
}

// NewI2CBus opens the default I2C bus.
func NewI2CBus() (*I2CBus, error) {
	bus, err := i2c.New()
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &I2CBus{bus: bus}, nil
}

// ReadBytes reads n bytes from addr.
func (b *I2CBus) ReadBytes(addr byte, n int) ([]byte, error) {
	return b.bus.ReadBytes(addr, n)
}

// Close releases the bus.
func (b *I2CBus) Close() error {
	return b.bus.Close()
}

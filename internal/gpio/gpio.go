// Package gpio provides digital output control with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Writer drives digital outputs.
type Writer interface {
	// Set drives pin to the logical state on. The mapping from logical to
	// raw level is fixed for the whole system: relays are active-low, so
	// on = raw 0 and off = raw 1.
	Set(pin int, on bool) error

	// Close releases GPIO resources, leaving every line off.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinInlet  = 17
	DefaultPinOutlet = 27
	DefaultPinValve  = 22
)

// DefaultDosingPins are the dosing pump lines, channel 0 first.
var DefaultDosingPins = []int{5, 6, 13}

// rawLevel converts a logical state into the line value.
func rawLevel(on bool) int {
	if on {
		return 0
	}
	return 1
}

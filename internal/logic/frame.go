package logic

// Ladder geometry. The low board reports 8 segments, the high board 12.
const (
	LowSegments   = 8
	HighSegments  = 12
	TotalSegments = LowSegments + HighSegments

	// DefaultTouchThreshold is the raw value above which a segment counts as wet.
	DefaultTouchThreshold = 100
)

// Frame is one snapshot of both segment arrays.
type Frame struct {
	Low  [LowSegments]byte
	High [HighSegments]byte
}

// Valid reports whether any byte is nonzero. An all-zero frame means the
// boards are disconnected, not that the tank is empty.
func (f Frame) Valid() bool {
	for _, b := range f.Low {
		if b != 0 {
			return true
		}
	}
	for _, b := range f.High {
		if b != 0 {
			return true
		}
	}
	return false
}

// Mask returns the touched segments as a bitmask, bit 0 being the lowest.
func (f Frame) Mask(threshold byte) uint32 {
	var mask uint32
	for i, b := range f.Low {
		if b > threshold {
			mask |= 1 << uint(i)
		}
	}
	for i, b := range f.High {
		if b > threshold {
			mask |= 1 << uint(LowSegments+i)
		}
	}
	return mask
}

// Segments counts contiguous touched segments from the bottom. A wet
// segment above a dry one is ignored.
func (f Frame) Segments(threshold byte) int {
	mask := f.Mask(threshold)
	n := 0
	for mask&1 == 1 && n < TotalSegments {
		n++
		mask >>= 1
	}
	return n
}

// Level converts a frame into a 0-100 percentage.
func Level(f Frame, threshold byte) int {
	level := (f.Segments(threshold)*100 + TotalSegments/2) / TotalSegments
	if level > 100 {
		return 100
	}
	return level
}

package gpio

import "fmt"

// Write is one recorded call to Set.
type Write struct {
	Pin int
	On  bool
}

// FakeWriter is a test double that records every write.
type FakeWriter struct {
	// Writes contains every Set call in order.
	Writes []Write

	// State is the last logical state per pin.
	State map[int]bool

	// SetError, if set, will be returned by Set (the write is still recorded).
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates an empty FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{State: make(map[int]bool)}
}

// Set records the write.
func (f *FakeWriter) Set(pin int, on bool) error {
	f.Writes = append(f.Writes, Write{Pin: pin, On: on})
	f.State[pin] = on
	return f.SetError
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// On reports the last logical state of pin.
func (f *FakeWriter) On(pin int) bool {
	return f.State[pin]
}

// WritesTo returns the writes made to pin.
func (f *FakeWriter) WritesTo(pin int) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.State = make(map[int]bool)
	f.SetError = nil
	f.Closed = false
}

func (w Write) String() string {
	state := "off"
	if w.On {
		state = "on"
	}
	return fmt.Sprintf("pin%d=%s", w.Pin, state)
}

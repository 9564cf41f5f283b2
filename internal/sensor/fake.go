package sensor

import "errors"

// Reply is one scripted bus response.
type Reply struct {
	Data []byte
	Err  error
}

// FakeBus is a test double that returns scripted replies per address.
// Each ReadBytes call consumes the next reply for that address; when the
// script is exhausted the last reply is repeated.
type FakeBus struct {
	Replies map[byte][]Reply

	index map[byte]int

	// Reads counts ReadBytes calls per address.
	Reads map[byte]int
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		Replies: make(map[byte][]Reply),
		index:   make(map[byte]int),
		Reads:   make(map[byte]int),
	}
}

// Script appends replies for addr.
func (f *FakeBus) Script(addr byte, replies ...Reply) {
	f.Replies[addr] = append(f.Replies[addr], replies...)
}

// ReadBytes returns the next scripted reply for addr.
func (f *FakeBus) ReadBytes(addr byte, n int) ([]byte, error) {
	f.Reads[addr]++
	script := f.Replies[addr]
	if len(script) == 0 {
		return nil, errors.New("no replies configured")
	}
	i := f.index[addr]
	r := script[i]
	if i < len(script)-1 {
		f.index[addr] = i + 1
	}
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]byte, len(r.Data))
	copy(out, r.Data)
	return out, nil
}

// Reset clears all scripts and counters.
func (f *FakeBus) Reset() {
	f.Replies = make(map[byte][]Reply)
	f.index = make(map[byte]int)
	f.Reads = make(map[byte]int)
}

// Wet returns n bytes with the bottom k segments above the touch threshold.
func Wet(n, k int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 20
		if i < k {
			b[i] = 200
		}
	}
	return b
}

// ScriptSegments appends one reply per board so that the next frame has the
// bottom k segments wet.
func (f *FakeBus) ScriptSegments(lowAddr, highAddr byte, k int) {
	lowWet, highWet := k, 0
	if k > 8 {
		lowWet, highWet = 8, k-8
	}
	f.Script(lowAddr, Reply{Data: Wet(8, lowWet)})
	f.Script(highAddr, Reply{Data: Wet(12, highWet)})
}

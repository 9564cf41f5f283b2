package mqtt

import "log"

// pending is a serialized message waiting for the broker to come back.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog is a fixed-capacity FIFO of messages published while offline. When
// full, the oldest message is overwritten. Not safe for concurrent use.
type backlog struct {
	ring    []pending
	head    int // next write slot
	count   int
	dropped int // total messages lost to overflow
	warned  bool
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{ring: make([]pending, capacity)}
}

func (b *backlog) push(msg pending) {
	b.ring[b.head] = msg
	b.head = (b.head + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
		return
	}
	b.dropped++
	if !b.warned {
		log.Printf("mqtt: backlog full (%d messages), dropping oldest", len(b.ring))
		b.warned = true
	}
}

// drain returns the queued messages oldest first and empties the backlog.
func (b *backlog) drain() []pending {
	if b.count == 0 {
		return nil
	}
	out := make([]pending, 0, b.count)
	first := (b.head - b.count + len(b.ring)) % len(b.ring)
	for i := 0; i < b.count; i++ {
		out = append(out, b.ring[(first+i)%len(b.ring)])
	}
	b.head, b.count, b.warned = 0, 0, false
	return out
}

func (b *backlog) len() int {
	return b.count
}

// Package sensor reads the capacitive touch ladder over I2C.
package sensor

import (
	"errors"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/tank-controller/internal/clock"
	"github.com/sweeney/tank-controller/internal/logic"
)

// Bus performs raw reads against a bus address.
type Bus interface {
	// ReadBytes requests n bytes from addr. It may return fewer bytes than
	// requested when the device has not produced them yet.
	ReadBytes(addr byte, n int) ([]byte, error)
}

// Default bus addresses and timing.
const (
	DefaultLowAddr     = 0x77
	DefaultHighAddr    = 0x78
	DefaultReadTimeout = time.Second

	retryInterval      = 10 * time.Millisecond
	calibrationSamples = 5
	calibrationDelay   = 100 * time.Millisecond
)

// Ladder selects one of the two segment boards.
type Ladder int

const (
	LowLadder Ladder = iota
	HighLadder
)

func (l Ladder) String() string {
	if l == HighLadder {
		return "high"
	}
	return "low"
}

// Config holds the link parameters.
type Config struct {
	LowAddr  byte
	HighAddr byte
	Timeout  time.Duration
}

// DefaultConfig returns the standard addresses with a 1s timeout.
func DefaultConfig() Config {
	return Config{
		LowAddr:  DefaultLowAddr,
		HighAddr: DefaultHighAddr,
		Timeout:  DefaultReadTimeout,
	}
}

// Link reads frames from both boards and tracks connection state.
// Read blocks, polling the bus until it delivers or the timeout elapses.
// It never retries a failed transaction; that is up to the caller.
type Link struct {
	bus   Bus
	clock clock.Clock
	cfg   Config

	connected   bool
	lastSuccess time.Time
	lastErr     logic.WaterError
}

// NewLink creates a Link. The link starts disconnected.
func NewLink(bus Bus, clk clock.Clock, cfg Config) *Link {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultReadTimeout
	}
	return &Link{bus: bus, clock: clk, cfg: cfg}
}

// Read performs the 8-byte low and 12-byte high transactions.
func (l *Link) Read() (logic.Frame, logic.WaterError) {
	var f logic.Frame

	low, werr := l.transact(l.cfg.LowAddr, logic.LowSegments)
	if werr != logic.ErrNone {
		return f, l.fail(werr)
	}
	high, werr := l.transact(l.cfg.HighAddr, logic.HighSegments)
	if werr != logic.ErrNone {
		return f, l.fail(werr)
	}
	copy(f.Low[:], low)
	copy(f.High[:], high)

	if !f.Valid() {
		return f, l.fail(logic.ErrSensorInvalidData)
	}

	l.lastErr = logic.ErrNone
	l.lastSuccess = l.clock.Now()
	l.connected = true
	return f, logic.ErrNone
}

// IsConnected reports whether the last read succeeded and was recent enough:
// within three read timeouts.
func (l *Link) IsConnected() bool {
	return l.connected && l.clock.Now().Sub(l.lastSuccess) < 3*l.cfg.Timeout
}

// LastError returns the result of the most recent Read.
func (l *Link) LastError() logic.WaterError {
	return l.lastErr
}

// LastSuccess returns the time of the last good read.
func (l *Link) LastSuccess() time.Time {
	return l.lastSuccess
}

// Calibrate averages several good reads of one board. Any failed read aborts
// the calibration.
func (l *Link) Calibrate(ladder Ladder) ([]byte, logic.WaterError) {
	n := logic.LowSegments
	if ladder == HighLadder {
		n = logic.HighSegments
	}
	sums := make([]int, n)

	for i := 0; i < calibrationSamples; i++ {
		f, werr := l.Read()
		if werr != logic.ErrNone {
			return nil, werr
		}
		src := f.Low[:]
		if ladder == HighLadder {
			src = f.High[:]
		}
		for j, b := range src {
			sums[j] += int(b)
		}
		l.clock.Sleep(calibrationDelay)
	}

	ref := make([]byte, n)
	for j, s := range sums {
		ref[j] = byte(s / calibrationSamples)
	}
	return ref, logic.ErrNone
}

func (l *Link) fail(werr logic.WaterError) logic.WaterError {
	l.lastErr = werr
	l.connected = false
	return werr
}

// transact polls addr until n bytes arrive or the timeout elapses.
func (l *Link) transact(addr byte, n int) ([]byte, logic.WaterError) {
	start := l.clock.Now()
	for {
		b, err := l.bus.ReadBytes(addr, n)
		if err != nil {
			if isTimeout(err) {
				return nil, logic.ErrSensorTimeout
			}
			log.Printf("sensor: read 0x%02x: %v", addr, err)
			return nil, logic.ErrSensorComm
		}
		if len(b) >= n {
			return b[:n], logic.ErrNone
		}
		if l.clock.Now().Sub(start) > l.cfg.Timeout {
			return nil, logic.ErrSensorTimeout
		}
		l.clock.Sleep(retryInterval)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT)
}

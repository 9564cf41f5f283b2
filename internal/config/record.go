// Package config holds the persisted user configuration record and the
// stores that keep it across restarts.
//
// The record is a flat fixed-size structure encoded little-endian. Every
// field has an "unset" sentinel (all bits set for its width) so a record
// that was never written, or was factory reset, can be told apart from a
// legitimate zero.
package config

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// PumpCount is the number of pump channels in the record: three dosing
// channels, then inlet, then outlet.
const PumpCount = 5

// Channel indices within the per-pump arrays.
const (
	PumpInlet  = 3
	PumpOutlet = 4
)

// Sentinels marking a field as never configured.
const (
	UnsetU8  uint8  = math.MaxUint8
	UnsetU16 uint16 = math.MaxUint16
	UnsetU32 uint32 = math.MaxUint32
	UnsetU64 uint64 = math.MaxUint64
	UnsetI64 int64  = -1
)

// Pump mode values for InletMode/OutletMode.
const (
	ModeAuto   uint8 = 0
	ModeManual uint8 = 1
)

// Configuration is the persisted record. Field order is the on-disk layout.
type Configuration struct {
	LanguageIndex uint8
	TankVolume    uint32 // litres
	TimeOffset    int64  // seconds added to the host clock for dosing

	PumpAmounts   [PumpCount]uint16 // ml per dose
	PumpDurations [PumpCount]uint64 // ms, last computed run time
	PumpIntervals [PumpCount]uint32 // days, 0 disables
	LastDose      [PumpCount]uint64 // unix seconds

	LowThreshold  uint16
	HighThreshold uint16

	InletMode  uint8
	OutletMode uint8
}

// RecordSize is the encoded size of a Configuration in bytes.
var RecordSize = binary.Size(Configuration{})

// Default returns the record used when nothing valid is stored.
func Default() Configuration {
	return Configuration{
		LanguageIndex: 1, // English
		TankVolume:    100,
		TimeOffset:    0,
		LowThreshold:  30,
		HighThreshold: 70,
		InletMode:     ModeAuto,
		OutletMode:    ModeAuto,
	}
}

// FactoryReset returns a record with every field set to its sentinel.
func FactoryReset() Configuration {
	c := Configuration{
		LanguageIndex: UnsetU8,
		TankVolume:    UnsetU32,
		TimeOffset:    UnsetI64,
		LowThreshold:  UnsetU16,
		HighThreshold: UnsetU16,
		InletMode:     UnsetU8,
		OutletMode:    UnsetU8,
	}
	for i := 0; i < PumpCount; i++ {
		c.PumpAmounts[i] = UnsetU16
		c.PumpDurations[i] = UnsetU64
		c.PumpIntervals[i] = UnsetU32
		c.LastDose[i] = UnsetU64
	}
	return c
}

// IsValid reports whether c can be applied. A record is rejected if any
// field holds its sentinel, if a threshold is outside [0,100], or if the
// low threshold is not strictly below the high one.
func IsValid(c Configuration) bool {
	if c.LanguageIndex == UnsetU8 || c.TankVolume == UnsetU32 || c.TimeOffset == UnsetI64 {
		return false
	}
	for i := 0; i < PumpCount; i++ {
		if c.PumpAmounts[i] == UnsetU16 ||
			c.PumpDurations[i] == UnsetU64 ||
			c.PumpIntervals[i] == UnsetU32 ||
			c.LastDose[i] == UnsetU64 {
			return false
		}
	}
	if c.LowThreshold == UnsetU16 || c.HighThreshold == UnsetU16 {
		return false
	}
	if c.InletMode == UnsetU8 || c.OutletMode == UnsetU8 {
		return false
	}
	if c.LowThreshold > 100 || c.HighThreshold > 100 {
		return false
	}
	return c.LowThreshold < c.HighThreshold
}

// Encode serializes c in the fixed little-endian layout.
func Encode(c Configuration) []byte {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	// Writes to a bytes.Buffer of fixed-size fields cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, &c)
	return buf.Bytes()
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (Configuration, error) {
	var c Configuration
	if len(data) != RecordSize {
		return c, fmt.Errorf("config: record is %d bytes, want %d", len(data), RecordSize)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &c); err != nil {
		return c, fmt.Errorf("config: decode record: %w", err)
	}
	return c, nil
}

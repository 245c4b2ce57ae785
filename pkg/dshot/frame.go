// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import "fmt"

// Frame is a 16-bit DShot command word: 11-bit value, telemetry request bit
// (always 0 here) and a 4-bit checksum.
type Frame uint16

// EncodeThrottle maps a raw throttle command (nominally 2000-4000) onto the
// protocol range and returns the checksummed frame.
//
// Internal values 1-47 are reserved for commands and clamp up to MinThrottle.
// Internal 0 (disarm) is passed through unchanged.
func EncodeThrottle(raw uint16) Frame {
	var v uint16
	switch {
	case raw <= ThrottleBias:
		v = 0
	case raw-ThrottleBias > MaxThrottle:
		v = MaxThrottle
	default:
		v = raw - ThrottleBias
	}
	if v > 0 && v < MinThrottle {
		v = MinThrottle
	}
	return EncodeValue(v)
}

// EncodeValue builds a frame from an internal 11-bit value without any
// clamping. Values above MaxThrottle are masked.
func EncodeValue(v uint16) Frame {
	v &= MaxThrottle
	return Frame(v<<5 | frameChecksum(v))
}

// frameChecksum folds the 12-bit value+telemetry word into a nibble.
func frameChecksum(v uint16) uint16 {
	c := v << 1
	return ^(c ^ c>>4 ^ c>>8) & 0x0F
}

// Value returns the 11-bit value carried by the frame.
func (f Frame) Value() uint16 {
	return uint16(f) >> 5
}

// Telemetry reports whether the telemetry request bit is set.
func (f Frame) Telemetry() bool {
	return f&0x10 != 0
}

// Checksum returns the low nibble.
func (f Frame) Checksum() uint8 {
	return uint8(f & 0x0F)
}

// Valid reports whether the checksum matches the inverted-XOR rule used by
// bidirectional DShot.
func (f Frame) Valid() bool {
	return nibbleFold(uint16(f)) == 0x0F
}

// Bit returns frame bit i counted from the most significant bit.
func (f Frame) Bit(i int) bool {
	return uint16(f)&(1<<(FrameBits-1-i)) != 0
}

func (f Frame) String() string {
	return fmt.Sprintf("0x%04X (value=%d crc=0x%X)", uint16(f), f.Value(), f.Checksum())
}

// nibbleFold XORs the four nibbles of a 16-bit word.
func nibbleFold(v uint16) uint16 {
	return (v ^ v>>4 ^ v>>8 ^ v>>12) & 0x0F
}

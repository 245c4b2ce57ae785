// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSymbol is returned when a 5-bit group is not a GCR code word.
	ErrInvalidSymbol = errors.New("invalid GCR symbol")
	// ErrChecksum is returned when the decoded telemetry checksum fails.
	ErrChecksum = errors.New("telemetry checksum mismatch")
	// ErrZeroPeriod is returned for a payload that encodes a 0 µs period.
	ErrZeroPeriod = errors.New("telemetry period is zero")
)

type gcrEntry struct {
	nibble uint8
	ok     bool
}

// gcrDecode maps 5-bit code words onto nibbles; 16 of the 32 patterns are
// not code words.
var gcrDecode = [32]gcrEntry{
	0x19: {0x0, true},
	0x1B: {0x1, true},
	0x12: {0x2, true},
	0x13: {0x3, true},
	0x1D: {0x4, true},
	0x15: {0x5, true},
	0x16: {0x6, true},
	0x17: {0x7, true},
	0x1A: {0x8, true},
	0x09: {0x9, true},
	0x0A: {0xA, true},
	0x0B: {0xB, true},
	0x1E: {0xC, true},
	0x0D: {0xD, true},
	0x0E: {0xE, true},
	0x0F: {0xF, true},
}

var gcrEncode = [16]uint8{
	0x19, 0x1B, 0x12, 0x13, 0x1D, 0x15, 0x16, 0x17,
	0x1A, 0x09, 0x0A, 0x0B, 0x1E, 0x0D, 0x0E, 0x0F,
}

// DecodeGCRSymbol looks up one 5-bit group.
func DecodeGCRSymbol(code uint8) (uint8, bool) {
	e := gcrDecode[code&0x1F]
	return e.nibble, e.ok
}

// Telemetry is a validated ESC response.
type Telemetry struct {
	Value uint16 // 12-bit payload and 4-bit checksum
}

// Exponent returns the 3-bit left shift of the period mantissa.
func (t Telemetry) Exponent() uint8 {
	return uint8(t.Value >> 13)
}

// Mantissa returns the 9-bit period mantissa.
func (t Telemetry) Mantissa() uint16 {
	return (t.Value >> 4) & 0x1FF
}

// PeriodMicros returns the electrical period in microseconds.
func (t Telemetry) PeriodMicros() uint32 {
	return uint32(t.Mantissa()) << t.Exponent()
}

// ERPM returns electrical revolutions per minute.
func (t Telemetry) ERPM() uint32 {
	p := t.PeriodMicros()
	if p == 0 {
		return 0
	}
	return microsPerMin / p
}

// RPM converts the period to mechanical RPM with integer truncation at each
// step.
func (t Telemetry) RPM(poles int) uint32 {
	p := t.PeriodMicros()
	if p == 0 || poles <= 0 {
		return 0
	}
	return microsPerMin / p * 2 / uint32(poles)
}

func (t Telemetry) String() string {
	return fmt.Sprintf("0x%04X (period=%dus e=%d m=%d)", t.Value, t.PeriodMicros(), t.Exponent(), t.Mantissa())
}

// DecodeTelemetry turns a raw 21-bit capture word into validated telemetry.
func DecodeTelemetry(raw uint32) (Telemetry, error) {
	gcr := raw ^ (raw >> 1)

	var value uint16
	for g := 0; g < GCRGroups; g++ {
		code := uint8(gcr >> (g * GCRGroupBits) & 0x1F)
		nibble, ok := DecodeGCRSymbol(code)
		if !ok {
			return Telemetry{}, fmt.Errorf("%w 0x%02X in group %d", ErrInvalidSymbol, code, g)
		}
		value |= uint16(nibble) << (g * 4)
	}

	if !ChecksumValid(value) {
		return Telemetry{}, fmt.Errorf("%w: value 0x%04X", ErrChecksum, value)
	}

	t := Telemetry{Value: value}
	if t.PeriodMicros() == 0 {
		return Telemetry{}, ErrZeroPeriod
	}
	return t, nil
}

// ChecksumValid reports whether the four nibbles of v XOR to 0xF. The rule is
// shared by command frames and telemetry responses.
func ChecksumValid(v uint16) bool {
	return nibbleFold(v) == 0x0F
}

// EncodeTelemetry builds the 16-bit telemetry value an ESC sends for the
// given period, choosing the smallest exponent that fits the mantissa.
func EncodeTelemetry(periodMicros uint32) uint16 {
	var e uint16
	for periodMicros > 0x1FF && e < 7 {
		periodMicros >>= 1
		e++
	}
	if periodMicros > 0x1FF {
		periodMicros = 0x1FF
	}
	payload := e<<9 | uint16(periodMicros)
	crc := ^(payload ^ payload>>4 ^ payload>>8) & 0x0F
	return payload<<4 | crc
}

// EncodeGCR maps a telemetry value onto the 21-bit line word, start bit
// included. It is the inverse of DecodeTelemetry.
func EncodeGCR(value uint16) uint32 {
	var gcr uint32
	for g := 0; g < GCRGroups; g++ {
		nibble := (value >> (g * 4)) & 0x0F
		gcr |= uint32(gcrEncode[nibble]) << (g * GCRGroupBits)
	}

	// undo raw ^ (raw >> 1)
	var raw uint32
	for shift := 0; shift < 32; shift++ {
		raw ^= gcr >> shift
	}
	return raw & ones(ResponseLength)
}

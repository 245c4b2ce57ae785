// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dshot implements the bidirectional DShot protocol engine.
//
// Throttle commands are encoded into checksummed 16-bit frames, expanded into
// pin set/reset words for bit-banged playback, and the ESC telemetry response
// is recovered from oversampled port captures, GCR decoded, checksum
// validated and turned into motor RPM.
package dshot

// Frame layout
const (
	ThrottleBias  = 1953 // raw throttle domain 2000-4000 maps onto 47-2047
	MinThrottle   = 48   // smallest non-command value
	MaxThrottle   = 2047 // 11-bit value
	FrameBits     = 16
	TrailingSlots = 2 // bit slots held high after the frame
	BufferSlots   = FrameBits + TrailingSlots
)

// Special command values (0-47). Only sent with EncodeValue.
const (
	CmdMotorStop = iota
	CmdBeacon1
	CmdBeacon2
	CmdBeacon3
	CmdBeacon4
	CmdBeacon5
	CmdESCInfo
	CmdSpinDirection1
	CmdSpinDirection2
	Cmd3DModeOff
	Cmd3DModeOn
	CmdSettingsRequest
	CmdSaveSettings
	CmdMax = 47
)

// Telemetry response layout
const (
	ResponseLength = 21 // start bit + 4 GCR groups of 5 bits
	GCRGroupBits   = 5
	GCRGroups      = 4

	// NoResponse is the raw word returned when the ESC never pulled the line low.
	NoResponse uint32 = 0xFFFFFFFF
)

// Supported bit rates in kbit/s
const (
	DShot150  = 150
	DShot300  = 300
	DShot600  = 600
	DShot1200 = 1200
)

// Defaults
const (
	DefaultBitRate          = DShot300
	DefaultOversampling     = 3
	DefaultPolesPerMotor    = 14
	DefaultTelemetryRateNum = 4 // measured 4/3 of the command rate, not the documented 5/4
	DefaultTelemetryRateDen = 3
	DefaultResponseGapUs    = 33
)

// RPM tracker constants
const (
	errorDecay   = 0.9
	errorPenalty = 10.0
	microsPerMin = 60 * 1000 * 1000
)

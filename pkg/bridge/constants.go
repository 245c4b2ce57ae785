// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge implements the capture bridge link: a flight controller (or
// the simulator) streams every raw telemetry capture together with the
// frames that triggered it, so a host can decode and audit the link offline.
//
// Wire format:
//
//	START | stuffed( length(u16 LE) | CBOR record | CRC-16-CCITT (BE) ) | END
package bridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPayloadSize = 2048
	lengthSize     = 2
	crcSize        = 2
	MaxPacketSize  = lengthSize + MaxPayloadSize + crcSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Decoder states
const (
	stateIdle = iota
	stateLength1
	stateLength2
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)

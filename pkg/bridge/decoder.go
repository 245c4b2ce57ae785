// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrCRCMismatch is returned when a complete packet fails its checksum.
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the bridge packet decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	length      uint16
	crc         uint16
	rawBuffer   []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new bridge decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, lengthSize+MaxPayloadSize),
		rawBuffer: make([]byte, 0, MaxPacketSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.length = 0
	d.crc = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes of the packet in progress, framing
// included. Bytes outside a packet are not kept.
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed packet, or nil if the packet is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	// Framing bytes are never escaped on the wire
	switch b {
	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength1
		return nil, nil
	case EndByte:
		d.rawBuffer = append(d.rawBuffer, b)
		return d.finish()
	}

	if d.state == stateIdle {
		// Noise before a START byte is not part of any packet
		return nil, nil
	}
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength1:
		d.length = uint16(b)
		d.store(b)
		d.state = stateLength2
		return nil, nil

	case stateLength2:
		d.length |= uint16(b) << 8
		d.store(b)
		if d.length == 0 || d.length > MaxPayloadSize {
			err := fmt.Errorf("invalid length: %d (max %d)", d.length, MaxPayloadSize)
			d.Reset()
			return nil, err
		}
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.store(b)
		if d.bufferIndex >= lengthSize+int(d.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("data byte 0x%02X after CRC", b)
	}
}

func (d *Decoder) store(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}

func (d *Decoder) finish() (*Packet, error) {
	state := d.state
	if state == stateIdle {
		d.Reset()
		return nil, nil
	}
	if state != stateEnd {
		d.Reset()
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	data := d.buffer[:d.bufferIndex]
	calculated := CalculateCRC(data)
	if calculated != d.crc {
		err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, d.crc)
		d.Reset()
		return nil, err
	}

	p := &Packet{length: d.length, crc: d.crc, timestamp: time.Now()}
	err := cbor.Unmarshal(data[lengthSize:], &p.Record)
	if err == nil {
		err = p.Record.Validate()
	}
	d.Reset()
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return p, nil
}

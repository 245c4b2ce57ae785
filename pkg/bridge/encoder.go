// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrPayloadTooLarge is returned when a record does not fit in one packet.
var ErrPayloadTooLarge = errors.New("CBOR payload too large")

// Encoder encodes capture records for transmission.
// Handles CBOR encoding, byte stuffing, and CRC calculation.
type Encoder struct {
	mode cbor.EncMode
}

// NewEncoder creates a new record encoder.
func NewEncoder() (*Encoder, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &Encoder{mode: mode}, nil
}

// Encode creates a complete wire-formatted packet from a record.
func (e *Encoder) Encode(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	payload, err := e.mode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	var length, check [2]byte
	binary.LittleEndian.PutUint16(length[:], uint16(len(payload)))
	crc := updateCRC(updateCRC(crcInitial, length[:]), payload)
	binary.BigEndian.PutUint16(check[:], crc)

	// Worst case every byte is escaped
	packet := make([]byte, 0, 2+2*(lengthSize+len(payload)+crcSize))
	packet = append(packet, StartByte)
	packet = appendStuffed(packet, length[:])
	packet = appendStuffed(packet, payload)
	packet = appendStuffed(packet, check[:])
	return append(packet, EndByte), nil
}

// needsEscape reports whether b collides with a framing byte.
func needsEscape(b byte) bool {
	return b == StartByte || b == EndByte || b == EscByte
}

// appendStuffed appends data to dst with framing bytes escaped as
// ESC, b^EscXor.
func appendStuffed(dst, data []byte) []byte {
	for _, b := range data {
		if needsEscape(b) {
			dst = append(dst, EscByte, b^EscXor)
			continue
		}
		dst = append(dst, b)
	}
	return dst
}

func stuffBytes(data []byte) []byte {
	return appendStuffed(make([]byte, 0, len(data)), data)
}

// UnstuffBytes reverses the escaping of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != EscByte {
			out = append(out, data[i])
			continue
		}
		i++
		if i == len(data) {
			return nil, fmt.Errorf("incomplete escape sequence at end of data")
		}
		out = append(out, data[i]^EscXor)
	}
	return out, nil
}

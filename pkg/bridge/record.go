// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

// Record is one port capture as carried on the link.
type Record struct {
	Port    uint8    `cbor:"0,keyasint"`
	Cycle   uint64   `cbor:"1,keyasint"`
	Pins    []uint8  `cbor:"2,keyasint"`
	Motors  []uint8  `cbor:"3,keyasint"`
	Frames  []uint16 `cbor:"4,keyasint"`
	Samples []uint32 `cbor:"5,keyasint"`
}

// NewRecord builds a record from an engine capture.
func NewRecord(port int, cycle uint64, p dshot.Port, frames []dshot.Frame, samples []uint32) *Record {
	r := &Record{
		Port:    uint8(port),
		Cycle:   cycle,
		Pins:    append([]uint8(nil), p.Pins...),
		Frames:  make([]uint16, len(frames)),
		Samples: append([]uint32(nil), samples...),
	}
	for _, m := range p.Motors {
		r.Motors = append(r.Motors, uint8(m))
	}
	for i, f := range frames {
		r.Frames[i] = uint16(f)
	}
	return r
}

// Validate checks that the per-motor slices line up.
func (r *Record) Validate() error {
	if len(r.Pins) != len(r.Motors) || len(r.Pins) != len(r.Frames) {
		return fmt.Errorf("record: pins (%d), motors (%d) and frames (%d) differ in length",
			len(r.Pins), len(r.Motors), len(r.Frames))
	}
	for _, pin := range r.Pins {
		if pin > 15 {
			return fmt.Errorf("record: pin %d out of range", pin)
		}
	}
	return nil
}

// Decode runs the capture decoder and telemetry decoder for every motor in
// the record.
func (r *Record) Decode(d *dshot.CaptureDecoder) []dshot.Response {
	responses := make([]dshot.Response, 0, len(r.Pins))
	for i, pin := range r.Pins {
		resp := dshot.Response{Motor: int(r.Motors[i])}
		resp.Raw, resp.Err = d.Decode(r.Samples, pin)
		if resp.Err == nil {
			resp.Telemetry, resp.Err = dshot.DecodeTelemetry(resp.Raw)
		}
		responses = append(responses, resp)
	}
	return responses
}

// Packet is a received record with its link metadata.
type Packet struct {
	Record    Record
	length    uint16
	crc       uint16
	timestamp time.Time
}

// Length returns the CBOR payload length.
func (p *Packet) Length() uint16 {
	return p.length
}

// CRC returns the received checksum.
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns when the packet was completed.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

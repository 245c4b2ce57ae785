// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

// Recorder writes every engine capture to a stream in link format, so that a
// recording can be replayed like a live bridge. Capture is a dshot.CaptureFunc.
type Recorder struct {
	w       io.Writer
	enc     *Encoder
	ports   map[string]int
	records uint64
	bytes   uint64
	err     error
}

// NewRecorder creates a recorder for the ports of cfg. It fails when the
// largest record a port can produce would not fit in one link packet.
func NewRecorder(w io.Writer, cfg dshot.Config) (*Recorder, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	r := &Recorder{w: w, enc: enc, ports: make(map[string]int)}
	for i, p := range cfg.Ports {
		if _, err := enc.Encode(worstCaseRecord(i, p, cfg.CaptureLength())); err != nil {
			return nil, fmt.Errorf("recorder: port %s with %d samples per capture: %w", p.Name, cfg.CaptureLength(), err)
		}
		r.ports[p.Name] = i
	}
	return r, nil
}

// worstCaseRecord is the longest CBOR encoding a capture of port can take.
func worstCaseRecord(idx int, p dshot.Port, samples int) *Record {
	frames := make([]dshot.Frame, len(p.Pins))
	for i := range frames {
		frames[i] = math.MaxUint16
	}
	capture := make([]uint32, samples)
	for i := range capture {
		capture[i] = math.MaxUint32
	}
	return NewRecord(idx, math.MaxUint64, p, frames, capture)
}

// Capture encodes and writes one capture. After the first write error the
// recorder stops writing; the error is returned by Err.
func (r *Recorder) Capture(cycle uint64, port dshot.Port, frames []dshot.Frame, samples []uint32) {
	if r.err != nil {
		return
	}

	idx, ok := r.ports[port.Name]
	if !ok {
		glog.Warningf("recorder: unknown port %q", port.Name)
		return
	}

	data, err := r.enc.Encode(NewRecord(idx, cycle, port, frames, samples))
	if err != nil {
		glog.Warningf("recorder: cycle %d port %s: %v", cycle, port.Name, err)
		return
	}
	n, err := r.w.Write(data)
	r.bytes += uint64(n)
	if err != nil {
		r.err = fmt.Errorf("recorder: write failed: %w", err)
		return
	}
	r.records++
}

// Records returns the number of records written.
func (r *Recorder) Records() uint64 {
	return r.records
}

// Bytes returns the number of bytes written.
func (r *Recorder) Bytes() uint64 {
	return r.bytes
}

// Err returns the write error that stopped the recorder, if any.
func (r *Recorder) Err() error {
	return r.err
}

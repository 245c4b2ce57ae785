// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import "errors"

// ErrNoResponse is returned when no start bit is found in the startup window.
var ErrNoResponse = errors.New("no telemetry response")

// CaptureDecoder recovers the raw 21-bit telemetry word from oversampled port
// captures. The response is self-clocked: only run lengths matter, not the
// absolute sample phase.
type CaptureDecoder struct {
	startupWindow int
	oversampling  int
}

// NewCaptureDecoder derives the capture windows from the configuration.
func NewCaptureDecoder(cfg Config) *CaptureDecoder {
	return &CaptureDecoder{
		startupWindow: cfg.StartupWindow(),
		oversampling:  cfg.Oversampling,
	}
}

// Decode extracts the response of the motor on pin from samples.
// On failure it returns NoResponse and ErrNoResponse.
func (d *CaptureDecoder) Decode(samples []uint32, pin uint8) (uint32, error) {
	mask := uint32(1) << pin

	// The line idles high right after playback; find the start bit.
	start := -1
	for i := 0; i < d.startupWindow && i < len(samples); i++ {
		if samples[i]&mask == 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return NoResponse, ErrNoResponse
	}

	end := start + ResponseLength*d.oversampling
	if end > len(samples) {
		end = len(samples)
	}

	var response uint32
	bits := 0
	prevLevel := uint32(0)
	prevIndex := start

	run := func(length int, high bool) {
		n := length / d.oversampling
		if n < 1 {
			n = 1
		}
		if bits+n > ResponseLength {
			n = ResponseLength - bits
		}
		bits += n
		response <<= uint(n)
		if high {
			response |= ones(n)
		}
	}

	for i := start; i < end; i++ {
		level := samples[i] & mask
		if level == prevLevel {
			continue
		}
		run(i-prevIndex, prevLevel != 0)
		prevLevel = level
		prevIndex = i
	}
	// the run still open at the end of the window
	run(end-prevIndex, prevLevel != 0)

	// Whatever is left is idle high.
	rest := ResponseLength - bits
	response <<= uint(rest)
	response |= ones(rest)

	return response, nil
}

// ones returns a word with the n low bits set.
func ones(n int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32(1)<<uint(n) - 1
}

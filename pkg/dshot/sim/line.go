// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"fmt"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

// ReplayFrame plays the words of one port buffer on a single pin and
// recovers the frame from the low duration of every bit, as an ESC would.
func ReplayFrame(policy dshot.EncodingPolicy, words []uint32, pin uint8) (dshot.Frame, error) {
	n := policy.Sections()
	if len(words) != dshot.BufferSlots*n {
		return 0, fmt.Errorf("buffer has %d words, expected %d", len(words), dshot.BufferSlots*n)
	}

	set, reset := dshot.SetMask(pin), dshot.ResetMask(pin)
	high := true
	apply := func(word uint32) {
		// BSRR: set wins over reset
		if word&reset != 0 {
			high = false
		}
		if word&set != 0 {
			high = true
		}
	}

	threshold := (policy.Offsets[policy.ZeroSection] + policy.Offsets[policy.OneSection]) / 2
	var frame uint16

	for slot := 0; slot < dshot.FrameBits; slot++ {
		apply(words[slot*n])
		if high {
			return 0, fmt.Errorf("no falling edge in bit %d", slot)
		}

		low := -1
		for s := 1; s < n; s++ {
			apply(words[slot*n+s])
			if high && low < 0 {
				low = policy.Offsets[s]
			}
		}
		if low < 0 {
			return 0, fmt.Errorf("line held low through bit %d", slot)
		}

		frame <<= 1
		if low > threshold {
			frame |= 1
		}
	}

	for i := dshot.FrameBits * n; i < len(words); i++ {
		apply(words[i])
		if !high {
			return 0, fmt.Errorf("line low after the frame")
		}
	}

	f := dshot.Frame(frame)
	if !f.Valid() {
		return 0, fmt.Errorf("frame 0x%04X: bad checksum", frame)
	}
	return f, nil
}

// WriteResponse ORs the line levels of one motor's response into a capture
// buffer: gap idle-high samples, the 21 response bits oversampled, then idle
// high. NoResponse leaves the line high throughout.
func WriteResponse(dst []uint32, pin uint8, raw uint32, gap, oversampling int) {
	mask := uint32(1) << pin
	for i := range dst {
		bit := (i - gap) / oversampling
		if raw == dshot.NoResponse || i < gap || bit >= dshot.ResponseLength {
			dst[i] |= mask
			continue
		}
		if raw>>(dshot.ResponseLength-1-bit)&1 != 0 {
			dst[i] |= mask
		}
	}
}

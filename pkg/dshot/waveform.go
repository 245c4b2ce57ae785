// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import "fmt"

// EncodingPolicy describes how one bit slot is cut into DMA sections.
//
// Each section is one word written to the port set/reset register when the
// timer reaches Offsets[i] counts into the bit. Section 0 always pulls the
// line low. ZeroSection releases the line for a 0-bit, OneSection releases it
// for every bit.
type EncodingPolicy struct {
	Name        string
	FrameLength int   // timer counts per bit
	Offsets     []int // timer count at which each section is written
	ZeroSection int
	OneSection  int
}

// Sections returns the number of DMA sections per bit slot.
func (p EncodingPolicy) Sections() int {
	return len(p.Offsets)
}

// Validate checks that the policy describes a usable bit shape.
func (p EncodingPolicy) Validate() error {
	n := len(p.Offsets)
	if n < 3 {
		return fmt.Errorf("policy %q: need at least 3 sections, got %d", p.Name, n)
	}
	if p.Offsets[0] != 0 {
		return fmt.Errorf("policy %q: first section must start at 0", p.Name)
	}
	for i := 1; i < n; i++ {
		if p.Offsets[i] <= p.Offsets[i-1] || p.Offsets[i] >= p.FrameLength {
			return fmt.Errorf("policy %q: offsets must increase within the frame length", p.Name)
		}
	}
	if p.ZeroSection <= 0 || p.ZeroSection >= p.OneSection || p.OneSection >= n {
		return fmt.Errorf("policy %q: need 0 < zero section (%d) < one section (%d) < %d",
			p.Name, p.ZeroSection, p.OneSection, n)
	}
	return nil
}

// PolicySectioned splits every bit into 14 equal sections. Large buffers, but
// a single compare channel drives both playback and capture.
var PolicySectioned = EncodingPolicy{
	Name:        "sectioned",
	FrameLength: 140,
	Offsets:     []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130},
	ZeroSection: 3,
	OneSection:  9,
}

// PolicyThreePhase uses three compare channels so each bit needs only three
// words: fall, 0-bit release, 1-bit release.
var PolicyThreePhase = EncodingPolicy{
	Name:        "three-phase",
	FrameLength: 35,
	Offsets:     []int{0, 13, 26},
	ZeroSection: 1,
	OneSection:  2,
}

// PolicyByName resolves a built-in policy.
func PolicyByName(name string) (EncodingPolicy, error) {
	switch name {
	case PolicySectioned.Name, "v1":
		return PolicySectioned, nil
	case PolicyThreePhase.Name, "v2", "":
		return PolicyThreePhase, nil
	}
	return EncodingPolicy{}, fmt.Errorf("unknown encoding policy %q", name)
}

// SetMask returns the set-register bit for a pin.
func SetMask(pin uint8) uint32 {
	return 1 << pin
}

// ResetMask returns the reset-register bit for a pin.
func ResetMask(pin uint8) uint32 {
	return 1 << (pin + 16)
}

// Waveform is the playback buffer of one port.
type Waveform struct {
	policy EncodingPolicy
	pins   []uint8
	words  []uint32
}

// NewWaveform allocates a buffer for the given motor pins and presets it.
func NewWaveform(policy EncodingPolicy, pins []uint8) *Waveform {
	w := &Waveform{
		policy: policy,
		pins:   append([]uint8(nil), pins...),
		words:  make([]uint32, BufferSlots*policy.Sections()),
	}
	w.Reset()
	return w
}

// Reset writes the parts of the buffer that never change between frames.
func (w *Waveform) Reset() {
	var set, reset uint32
	for _, pin := range w.pins {
		set |= SetMask(pin)
		reset |= ResetMask(pin)
	}

	for i := range w.words {
		w.words[i] = 0
	}

	n := w.policy.Sections()
	for slot := 0; slot < FrameBits; slot++ {
		w.words[slot*n] = reset
		w.words[slot*n+w.policy.OneSection] = set
	}
	// ESC needs the line high after the last bit to latch the frame
	for i := FrameBits * n; i < len(w.words); i++ {
		w.words[i] = set
	}
}

// Fill writes the data-dependent section of every bit. frames must hold one
// frame per pin, in pin order.
func (w *Waveform) Fill(frames []Frame) error {
	if len(frames) != len(w.pins) {
		return fmt.Errorf("waveform: got %d frames for %d motors", len(frames), len(w.pins))
	}

	n := w.policy.Sections()
	for slot := 0; slot < FrameBits; slot++ {
		var word uint32
		for m, f := range frames {
			if !f.Bit(slot) {
				// 0-bit: release early
				word |= SetMask(w.pins[m])
			}
		}
		w.words[slot*n+w.policy.ZeroSection] = word
	}
	return nil
}

// Words returns the playback buffer. The slice is owned by the waveform.
func (w *Waveform) Words() []uint32 {
	return w.words
}

// Policy returns the encoding policy used by the buffer.
func (w *Waveform) Policy() EncodingPolicy {
	return w.policy
}

// Pins returns the motor pins in buffer order.
func (w *Waveform) Pins() []uint8 {
	return w.pins
}

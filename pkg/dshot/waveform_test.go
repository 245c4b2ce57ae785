// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicies_Valid(t *testing.T) {
	for _, p := range []EncodingPolicy{PolicySectioned, PolicyThreePhase} {
		t.Run(p.Name, func(t *testing.T) {
			require.NoError(t, p.Validate())
		})
	}
}

func TestPolicy_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		policy EncodingPolicy
	}{
		{"too few sections", EncodingPolicy{Name: "x", FrameLength: 10, Offsets: []int{0, 5}, ZeroSection: 1, OneSection: 1}},
		{"nonzero start", EncodingPolicy{Name: "x", FrameLength: 30, Offsets: []int{1, 10, 20}, ZeroSection: 1, OneSection: 2}},
		{"decreasing offsets", EncodingPolicy{Name: "x", FrameLength: 30, Offsets: []int{0, 20, 10}, ZeroSection: 1, OneSection: 2}},
		{"offset past frame", EncodingPolicy{Name: "x", FrameLength: 30, Offsets: []int{0, 10, 30}, ZeroSection: 1, OneSection: 2}},
		{"one before zero", EncodingPolicy{Name: "x", FrameLength: 30, Offsets: []int{0, 10, 20}, ZeroSection: 2, OneSection: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.policy.Validate())
		})
	}
}

func TestPolicyByName(t *testing.T) {
	for name, want := range map[string]string{
		"":            "three-phase",
		"v2":          "three-phase",
		"three-phase": "three-phase",
		"v1":          "sectioned",
		"sectioned":   "sectioned",
	} {
		p, err := PolicyByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, p.Name)
	}

	_, err := PolicyByName("v3")
	assert.Error(t, err)
}

// ============================================================
// Buffer Layout
// ============================================================

func TestWaveform_Reset(t *testing.T) {
	for _, p := range []EncodingPolicy{PolicySectioned, PolicyThreePhase} {
		t.Run(p.Name, func(t *testing.T) {
			w := NewWaveform(p, []uint8{3, 2})
			n := p.Sections()
			set := SetMask(3) | SetMask(2)
			reset := ResetMask(3) | ResetMask(2)

			want := make([]uint32, BufferSlots*n)
			for slot := 0; slot < FrameBits; slot++ {
				want[slot*n] = reset
				want[slot*n+p.OneSection] = set
			}
			for i := FrameBits * n; i < len(want); i++ {
				want[i] = set
			}

			if diff := cmp.Diff(want, w.Words()); diff != "" {
				t.Errorf("reset buffer mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWaveform_Fill(t *testing.T) {
	for _, p := range []EncodingPolicy{PolicySectioned, PolicyThreePhase} {
		t.Run(p.Name, func(t *testing.T) {
			w := NewWaveform(p, []uint8{0, 1})
			a := Frame(0xAAAA)
			b := Frame(0x00FF)
			require.NoError(t, w.Fill([]Frame{a, b}))

			n := p.Sections()
			words := w.Words()
			for slot := 0; slot < FrameBits; slot++ {
				var want uint32
				if !a.Bit(slot) {
					want |= SetMask(0)
				}
				if !b.Bit(slot) {
					want |= SetMask(1)
				}
				assert.Equal(t, want, words[slot*n+p.ZeroSection], "slot %d", slot)

				// everything else is untouched by Fill
				assert.Equal(t, ResetMask(0)|ResetMask(1), words[slot*n])
				assert.Equal(t, SetMask(0)|SetMask(1), words[slot*n+p.OneSection])
			}
		})
	}
}

func TestWaveform_FillOverwritesPreviousFrame(t *testing.T) {
	w := NewWaveform(PolicyThreePhase, []uint8{5})
	require.NoError(t, w.Fill([]Frame{0x0000}))
	require.NoError(t, w.Fill([]Frame{0xFFFF}))

	n := PolicyThreePhase.Sections()
	for slot := 0; slot < FrameBits; slot++ {
		assert.Zero(t, w.Words()[slot*n+PolicyThreePhase.ZeroSection])
	}
}

func TestWaveform_FillWrongCount(t *testing.T) {
	w := NewWaveform(PolicyThreePhase, []uint8{0, 1})
	assert.Error(t, w.Fill([]Frame{1}))
}

func TestMasks(t *testing.T) {
	assert.Equal(t, uint32(0x0008), SetMask(3))
	assert.Equal(t, uint32(0x00080000), ResetMask(3))
}

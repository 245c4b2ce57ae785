// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Throttle Encoding
// ============================================================

func TestEncodeThrottle(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		value uint16
		frame Frame
	}{
		{name: "just above bias clamps to 48", raw: 1954, value: 48, frame: 1545},
		{name: "bias is disarm", raw: 1953, value: 0, frame: 0x000F},
		{name: "below bias saturates to disarm", raw: 1000, value: 0, frame: 0x000F},
		{name: "zero saturates to disarm", raw: 0, value: 0, frame: 0x000F},
		{name: "nominal minimum clamps", raw: 2000, value: 48},
		{name: "first unclamped value", raw: 2001, value: 48},
		{name: "above minimum", raw: 2002, value: 49},
		{name: "mid throttle", raw: 3000, value: 1047},
		{name: "nominal maximum", raw: 4000, value: 2047},
		{name: "above maximum saturates", raw: 5000, value: 2047},
		{name: "uint16 max saturates", raw: 0xFFFF, value: 2047},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := EncodeThrottle(tt.raw)
			assert.Equal(t, tt.value, f.Value())
			assert.False(t, f.Telemetry())
			assert.True(t, f.Valid(), "frame %s", f)
			if tt.frame != 0 {
				assert.Equal(t, tt.frame, f)
			}
		})
	}
}

func TestEncodeThrottle_ChecksumOverRange(t *testing.T) {
	for raw := uint16(2000); raw <= 4000; raw++ {
		f := EncodeThrottle(raw)
		require.True(t, f.Valid(), "raw %d -> %s", raw, f)
		require.GreaterOrEqual(t, f.Value(), uint16(MinThrottle))
		require.LessOrEqual(t, f.Value(), uint16(MaxThrottle))
	}
}

func TestEncodeThrottle_Monotonic(t *testing.T) {
	prev := EncodeThrottle(2000).Value()
	for raw := uint16(2001); raw <= 4000; raw++ {
		v := EncodeThrottle(raw).Value()
		require.GreaterOrEqual(t, v, prev, "raw %d", raw)
		prev = v
	}
}

func TestFrame_SingleBitErrorDetected(t *testing.T) {
	for _, raw := range []uint16{1953, 1954, 2500, 3000, 3999, 4000} {
		f := EncodeThrottle(raw)
		for bit := 4; bit < 16; bit++ {
			flipped := f ^ Frame(1<<bit)
			assert.False(t, flipped.Valid(), "raw %d bit %d", raw, bit)
		}
	}
}

// ============================================================
// Special Commands
// ============================================================

func TestEncodeValue_Commands(t *testing.T) {
	for v := uint16(CmdMotorStop); v <= CmdMax; v++ {
		f := EncodeValue(v)
		assert.Equal(t, v, f.Value())
		assert.True(t, f.Valid())
	}
}

func TestEncodeValue_MasksHighBits(t *testing.T) {
	f := EncodeValue(0x0800 | 100)
	assert.Equal(t, uint16(100), f.Value())
	assert.True(t, f.Valid())
}

func TestFrame_Bit(t *testing.T) {
	f := Frame(0x8001)
	assert.True(t, f.Bit(0))
	assert.True(t, f.Bit(15))
	for i := 1; i < 15; i++ {
		assert.False(t, f.Bit(i), "bit %d", i)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idle returns a capture buffer with every pin high.
func idle(cfg Config) []uint32 {
	buf := make([]uint32, cfg.CaptureLength())
	for i := range buf {
		buf[i] = 0xFFFF
	}
	return buf
}

// writeLevels writes a 21-bit line word on pin starting at sample start.
func writeLevels(buf []uint32, pin uint8, raw uint32, start, os int) {
	for bit := 0; bit < ResponseLength; bit++ {
		high := raw>>(ResponseLength-1-bit)&1 != 0
		for s := 0; s < os; s++ {
			i := start + bit*os + s
			if i >= len(buf) {
				return
			}
			if high {
				buf[i] |= 1 << pin
			} else {
				buf[i] &^= 1 << pin
			}
		}
	}
}

func TestConfig_CaptureWindows(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 400, cfg.ResponseBitRate())
	assert.Equal(t, 13, cfg.GapBits())
	assert.Equal(t, 39, cfg.StartupWindow())
	assert.Equal(t, 105, cfg.CaptureLength())
}

// ============================================================
// Run-Length Decoding
// ============================================================

func TestDecode_LeadingLowRun(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)
	os := cfg.Oversampling

	for l := 1; l < ResponseLength; l++ {
		for _, extra := range []int{0, 1} {
			buf := idle(cfg)
			start := 10
			for i := start; i < start+l*os+extra; i++ {
				buf[i] &^= 1 << 2
			}

			got, err := d.Decode(buf, 2)
			require.NoError(t, err)
			assert.Equal(t, uint32(1)<<uint(ResponseLength-l)-1, got, "L=%d extra=%d", l, extra)
		}
	}
}

func TestDecode_RoundTripLineWord(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)

	for _, period := range []uint32{1, 37, 218, 511, 512, 1000, 4095, 20000, 65408} {
		for _, start := range []int{0, 17, cfg.StartupWindow() - 1} {
			raw := EncodeGCR(EncodeTelemetry(period))
			buf := idle(cfg)
			writeLevels(buf, 1, raw, start, cfg.Oversampling)

			got, err := d.Decode(buf, 1)
			require.NoError(t, err)
			assert.Equal(t, raw, got, "period %d start %d", period, start)
		}
	}
}

func TestDecode_TrailingLowBit(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)

	// start bit, alternating body, last bit low
	raw := uint32(0x0AAAAA) &^ 1
	buf := idle(cfg)
	writeLevels(buf, 0, raw, 5, cfg.Oversampling)

	got, err := d.Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecode_PinsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)

	a := EncodeGCR(EncodeTelemetry(218))
	b := EncodeGCR(EncodeTelemetry(3000))
	buf := idle(cfg)
	writeLevels(buf, 3, a, 20, cfg.Oversampling)
	writeLevels(buf, 2, b, 25, cfg.Oversampling)

	got, err := d.Decode(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = d.Decode(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDecode_NoResponse(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)

	t.Run("line high", func(t *testing.T) {
		got, err := d.Decode(idle(cfg), 0)
		assert.ErrorIs(t, err, ErrNoResponse)
		assert.Equal(t, NoResponse, got)
	})

	t.Run("start after window", func(t *testing.T) {
		buf := idle(cfg)
		writeLevels(buf, 0, EncodeGCR(EncodeTelemetry(218)), cfg.StartupWindow(), cfg.Oversampling)
		got, err := d.Decode(buf, 0)
		assert.ErrorIs(t, err, ErrNoResponse)
		assert.Equal(t, NoResponse, got)
	})

	t.Run("empty buffer", func(t *testing.T) {
		got, err := d.Decode(nil, 0)
		assert.ErrorIs(t, err, ErrNoResponse)
		assert.Equal(t, NoResponse, got)
	})
}

func TestDecode_LineStuckLow(t *testing.T) {
	cfg := DefaultConfig()
	d := NewCaptureDecoder(cfg)
	buf := make([]uint32, cfg.CaptureLength())

	got, err := d.Decode(buf, 4)
	require.NoError(t, err)
	assert.Zero(t, got)
}

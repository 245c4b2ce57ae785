// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(1545)
	assert.Contains(t, out, "frame=0x0609")
	assert.Contains(t, out, "value=48")
	assert.Contains(t, out, "bits=00000110000|0|1001")
	assert.Contains(t, out, "(ok)")

	assert.Contains(t, FormatFrame(1544), "BAD CRC")
}

func TestFormatRaw(t *testing.T) {
	out := FormatRaw(EncodeGCR(EncodeTelemetry(218)), 14)
	assert.Contains(t, out, "period=218us")
	assert.Contains(t, out, "rpm=39318")

	assert.Contains(t, FormatRaw(0, 14), "invalid GCR symbol")
	assert.Equal(t, "raw=NO_RESPONSE\n", FormatRaw(NoResponse, 14))
}

func TestFormatResponse(t *testing.T) {
	ok := Response{Motor: 1, Telemetry: Telemetry{Value: EncodeTelemetry(218)}, State: MotorState{RPM: 39318}}
	assert.Contains(t, FormatResponse(ok), "period=  218us")

	bad := Response{Motor: 2, Err: ErrNoResponse}
	assert.Contains(t, FormatResponse(bad), "no telemetry response")
}

func TestFormatWaveform(t *testing.T) {
	w := NewWaveform(PolicyThreePhase, []uint8{0})
	require.NoError(t, w.Fill([]Frame{0x000F}))

	slots := strings.Split(FormatWaveform(w, 0), "|")
	require.Len(t, slots, BufferSlots)
	assert.Equal(t, "___‾‾‾‾‾", slots[0])
	assert.Equal(t, "______‾‾", slots[FrameBits-1])
	assert.Equal(t, "‾‾‾‾‾‾‾‾", slots[BufferSlots-1])

	// a pin that is not on the port stays idle
	for _, s := range strings.Split(FormatWaveform(w, 9), "|") {
		assert.Equal(t, "‾‾‾‾‾‾‾‾", s)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Success(t *testing.T) {
	tr := NewTracker(4, 14)
	tel := Telemetry{Value: EncodeTelemetry(218)}

	s := tr.Observe(2, tel, nil)
	assert.Equal(t, uint32(39318), s.RPM)
	assert.Zero(t, s.Error)
	assert.Equal(t, uint32(39318), tr.RPM(2))
	assert.Zero(t, tr.RPM(0))
}

func TestTracker_FailureKeepsRPM(t *testing.T) {
	tr := NewTracker(1, 14)
	tr.Observe(0, Telemetry{Value: EncodeTelemetry(218)}, nil)

	s := tr.Observe(0, Telemetry{}, ErrNoResponse)
	assert.Equal(t, uint32(39318), s.RPM)
	assert.InDelta(t, 10.0, s.Error, 1e-9)

	s = tr.Observe(0, Telemetry{}, ErrChecksum)
	assert.InDelta(t, 19.0, s.Error, 1e-9)

	s = tr.Observe(0, Telemetry{Value: EncodeTelemetry(218)}, nil)
	assert.InDelta(t, 17.1, s.Error, 1e-9)
}

func TestTracker_ErrorBounds(t *testing.T) {
	tr := NewTracker(1, 14)

	for n := 1; n <= 200; n++ {
		s := tr.Observe(0, Telemetry{}, ErrNoResponse)
		want := 100 * (1 - math.Pow(0.9, float64(n)))
		assert.InDelta(t, want, s.Error, 1e-6, "after %d failures", n)
		assert.Less(t, s.Error, 100.0)
	}

	prev := tr.Error(0)
	for n := 0; n < 50; n++ {
		s := tr.Observe(0, Telemetry{Value: EncodeTelemetry(500)}, nil)
		assert.Less(t, s.Error, prev)
		assert.GreaterOrEqual(t, s.Error, 0.0)
		prev = s.Error
	}
}

func TestTracker_SuccessDecay(t *testing.T) {
	tr := NewTracker(1, 14)
	tr.Set(0, MotorState{Error: 100})

	for n := 1; n <= 5; n++ {
		s := tr.Observe(0, Telemetry{Value: EncodeTelemetry(218)}, nil)
		assert.InDelta(t, 100*math.Pow(0.9, float64(n)), s.Error, 1e-9, "after %d successes", n)
	}
	assert.InDelta(t, 59.049, tr.Error(0), 1e-9)
}

func TestTracker_States(t *testing.T) {
	tr := NewTracker(2, 14)
	tr.Set(1, MotorState{RPM: 1200, Error: 5})

	states := tr.States()
	assert.Equal(t, []MotorState{{}, {RPM: 1200, Error: 5}}, states)

	// copies do not alias the tracker
	states[1].RPM = 0
	assert.Equal(t, uint32(1200), tr.State(1).RPM)
	assert.Equal(t, 2, tr.MotorCount())
}

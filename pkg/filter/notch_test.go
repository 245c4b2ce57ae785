// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpms is a fixed RPMSource.
type rpms []uint32

func (r rpms) MotorCount() int       { return len(r) }
func (r rpms) RPM(motor int) uint32 { return r[motor] }

func newBank(t *testing.T) *NotchBank {
	t.Helper()
	b, err := NewNotchBank(DefaultBankConfig())
	require.NoError(t, err)
	return b
}

// ============================================================
// Weights
// ============================================================

func TestBankConfig_Weight(t *testing.T) {
	cfg := DefaultBankConfig()

	tests := []struct {
		name   string
		rpm    float64
		weight float64
		retune bool
	}{
		{"stopped", 0, 0, false},
		{"at minimum", 3000, 0, false},
		{"mid fade", 4500, 0.5, true},
		{"fade end", 6000, 1, true},
		{"inside band", 12000, 1, true},
		{"at max filterable", 25920, 0, false},
		{"above max filterable", 40000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, retune := cfg.Weight(tt.rpm / 60)
			assert.InDelta(t, tt.weight, w, 1e-12)
			assert.Equal(t, tt.retune, retune)
		})
	}
}

func TestNotchBank_Init(t *testing.T) {
	b := newBank(t)
	for axis := 0; axis < Axes; axis++ {
		for m := 0; m < 4; m++ {
			for h := 0; h < 3; h++ {
				f, w := b.Stage(axis, m, h)
				assert.Equal(t, 100.0, f.Frequency)
				assert.Equal(t, Notch, f.Type)
				assert.Equal(t, DF2T, f.Realization)
				assert.Equal(t, 1.0, w)
			}
		}
	}
}

func TestNotchBank_Update(t *testing.T) {
	b := newBank(t)
	b.Update(rpms{3000, 4500, 6000, 12000})

	tests := []struct {
		motor, harmonic int
		freq            float64
		weight          float64
	}{
		{0, 0, 100, 0}, // 50 Hz: not retuned
		{0, 1, 100, 1},
		{0, 2, 150, 1},
		{1, 0, 75, 0.5},
		{2, 0, 100, 1},
		{3, 0, 200, 1},
		{3, 1, 400, 1},
		{3, 2, 100, 0}, // 600 Hz: above max filterable
	}

	for _, tt := range tests {
		for axis := 0; axis < Axes; axis++ {
			f, w := b.Stage(axis, tt.motor, tt.harmonic)
			assert.InDelta(t, tt.freq, f.Frequency, 1e-9, "axis %d motor %d harmonic %d", axis, tt.motor, tt.harmonic)
			assert.InDelta(t, tt.weight, w, 1e-12, "axis %d motor %d harmonic %d", axis, tt.motor, tt.harmonic)
		}
	}

	ref, _ := b.Stage(0, 3, 0)
	for axis := 1; axis < Axes; axis++ {
		f, _ := b.Stage(axis, 3, 0)
		assert.Equal(t, ref.Coefficients(), f.Coefficients())
	}
}

func TestNotchBank_UpdateShortSource(t *testing.T) {
	b := newBank(t)
	b.Update(rpms{12000})

	f, w := b.Stage(0, 0, 0)
	assert.InDelta(t, 200.0, f.Frequency, 1e-9)
	assert.Equal(t, 1.0, w)

	f, w = b.Stage(0, 1, 0)
	assert.Equal(t, 100.0, f.Frequency)
	assert.Equal(t, 1.0, w)
}

// ============================================================
// Filtering
// ============================================================

func TestNotchBank_BypassIsExact(t *testing.T) {
	b := newBank(t)
	b.Update(rpms{0, 0, 0, 0})

	for i := 0; i < 100; i++ {
		x := math.Sin(float64(i) * 0.3)
		assert.Equal(t, x, b.Apply(1, x))
	}
}

func TestNotchBank_Response(t *testing.T) {
	b := newBank(t)
	b.Update(rpms{12000, 12000, 12000, 12000})

	assert.Less(t, b.Response(0, 200), 1e-6)
	assert.Less(t, b.Response(2, 400), 1e-6)
	assert.InDelta(t, 1.0, b.Response(0, 120), 1e-3)
	assert.InDelta(t, 1.0, b.Response(1, 10), 1e-3)

	b.Update(rpms{4500, 0, 0, 0})
	// half-weight notch leaves half the tone
	assert.InDelta(t, 0.5, b.Response(0, 75), 1e-4)
}

func TestNotchBank_RemovesMotorTone(t *testing.T) {
	cfg := DefaultBankConfig()
	cfg.Q = 5
	cfg.Motors = 1
	b, err := NewNotchBank(cfg)
	require.NoError(t, err)
	b.Update(rpms{12000})

	var peak [Axes]float64
	for i := 0; i < 3000; i++ {
		tone := math.Sin(2 * math.Pi * 200 * float64(i) / cfg.SampleRate)
		out := b.ApplyVector([Axes]float64{tone, 2 * tone, -tone})
		if i > 2000 {
			for axis := range out {
				peak[axis] = math.Max(peak[axis], math.Abs(out[axis]))
			}
		}
	}
	for axis := range peak {
		assert.Less(t, peak[axis], 1e-3, "axis %d", axis)
	}

	b.Reset()
	f, _ := b.Stage(0, 0, 0)
	assert.Zero(t, f.y1)
}

func TestBankConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultBankConfig().Validate())

	mutate := []func(*BankConfig){
		func(c *BankConfig) { c.Motors = 0 },
		func(c *BankConfig) { c.Harmonics = 0 },
		func(c *BankConfig) { c.Q = 0 },
		func(c *BankConfig) { c.SampleRate = 0 },
		func(c *BankConfig) { c.FadeRange = 0 },
		func(c *BankConfig) { c.MaxFilterableRatio = 0.5 },
		func(c *BankConfig) { c.MinFrequency = 500 },
		func(c *BankConfig) { c.SampleRate = 150 },
	}
	for i, m := range mutate {
		cfg := DefaultBankConfig()
		m(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
		_, err := NewNotchBank(cfg)
		assert.Error(t, err, "case %d", i)
	}
}

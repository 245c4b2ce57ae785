// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package filter

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fs = 900.0

func gain(f *Biquad, hz float64) float64 {
	return cmplx.Abs(f.Response(hz))
}

// ============================================================
// Coefficients
// ============================================================

func TestBiquad_Shapes(t *testing.T) {
	t.Run("low pass", func(t *testing.T) {
		f, err := NewBiquad(LowPass, 100, math.Sqrt2/2, fs)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, gain(f, 0), 1e-12)
		assert.InDelta(t, math.Sqrt2/2, gain(f, 100), 1e-9)
		assert.InDelta(t, 0.0, gain(f, fs/2), 1e-9)
	})

	t.Run("notch", func(t *testing.T) {
		f, err := NewBiquad(Notch, 200, 5, fs)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, gain(f, 0), 1e-12)
		assert.InDelta(t, 0.0, gain(f, 200), 1e-9)
		assert.InDelta(t, 1.0, gain(f, fs/2), 1e-12)
	})

	t.Run("band pass", func(t *testing.T) {
		f, err := NewBiquad(BandPass, 150, 2, fs)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, gain(f, 0), 1e-12)
		assert.InDelta(t, 1.0, gain(f, 150), 1e-9)
		assert.InDelta(t, 0.0, gain(f, fs/2), 1e-9)
	})
}

func TestBiquad_NotchCoefficients(t *testing.T) {
	f, err := NewBiquad(Notch, 225, 1, fs)
	require.NoError(t, err)

	// omega = pi/2: cos = 0, alpha = 1/2, a0 = 3/2
	c := f.Coefficients()
	assert.InDelta(t, 2.0/3, c[0], 1e-12)
	assert.InDelta(t, 0.0, c[1], 1e-12)
	assert.InDelta(t, 2.0/3, c[2], 1e-12)
	assert.InDelta(t, 0.0, c[3], 1e-12)
	assert.InDelta(t, 1.0/3, c[4], 1e-12)
}

func TestBiquad_ConfigureErrors(t *testing.T) {
	f := &Biquad{}
	assert.Error(t, f.Configure(Notch, 100, 5, 0))
	assert.Error(t, f.Configure(Notch, 100, 0, fs))
	assert.Error(t, f.Configure(Notch, 0, 5, fs))
	assert.Error(t, f.Configure(Notch, fs/2, 5, fs))
	assert.Error(t, f.Configure(Type(9), 100, 5, fs))
}

// ============================================================
// Realizations
// ============================================================

func TestBiquad_RealizationsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, typ := range []Type{LowPass, Notch, BandPass} {
		t.Run(typ.String(), func(t *testing.T) {
			a, err := NewBiquad(typ, 120, 3, fs)
			require.NoError(t, err)
			b, err := NewBiquad(typ, 120, 3, fs)
			require.NoError(t, err)

			for i := 0; i < 5000; i++ {
				x := rng.Float64()*2 - 1
				require.InDelta(t, a.ApplyDF1(x), b.ApplyDF2T(x), 1e-9, "sample %d", i)
			}
		})
	}
}

func TestBiquad_ApplyDispatch(t *testing.T) {
	a, _ := NewBiquad(LowPass, 50, 1, fs)
	b, _ := NewBiquad(LowPass, 50, 1, fs)
	a.Realization = DF1

	for i := 0; i < 10; i++ {
		a.Apply(1)
		b.Apply(1)
	}
	// each Apply only advanced its own state
	assert.NotZero(t, a.y1)
	assert.Zero(t, a.s1)
	assert.NotZero(t, b.s1)
	assert.Zero(t, b.y1)
}

func TestBiquad_StepSettles(t *testing.T) {
	f, _ := NewBiquad(LowPass, 50, math.Sqrt2/2, fs)
	var y float64
	for i := 0; i < 500; i++ {
		y = f.Apply(1)
	}
	assert.InDelta(t, 1.0, y, 1e-6)
}

func TestBiquad_ConfigureKeepsHistory(t *testing.T) {
	f, _ := NewBiquad(Notch, 100, 5, fs)
	for i := 0; i < 20; i++ {
		f.ApplyDF1(math.Sin(float64(i)))
		f.ApplyDF2T(math.Sin(float64(i)))
	}
	x1, y1, s1 := f.x1, f.y1, f.s1

	require.NoError(t, f.Configure(Notch, 150, 5, fs))
	assert.Equal(t, x1, f.x1)
	assert.Equal(t, y1, f.y1)
	assert.Equal(t, s1, f.s1)

	f.Reset()
	assert.Zero(t, f.x1)
	assert.Zero(t, f.y1)
	assert.Zero(t, f.s1)
	assert.Zero(t, f.s2)
}

func TestBiquad_CopyCoefficients(t *testing.T) {
	src, _ := NewBiquad(Notch, 180, 50, fs)
	dst, _ := NewBiquad(Notch, 100, 50, fs)
	dst.ApplyDF2T(1)
	s1 := dst.s1

	dst.CopyCoefficients(src)
	assert.Equal(t, src.Coefficients(), dst.Coefficients())
	assert.Equal(t, 180.0, dst.Frequency)
	assert.Equal(t, s1, dst.s1)
}

func TestBiquad_NotchRemovesTone(t *testing.T) {
	f, _ := NewBiquad(Notch, 200, 5, fs)

	var peak float64
	for i := 0; i < 4000; i++ {
		y := f.Apply(math.Sin(2 * math.Pi * 200 * float64(i) / fs))
		if i > 3000 {
			peak = math.Max(peak, math.Abs(y))
		}
	}
	assert.Less(t, peak, 1e-3)
}

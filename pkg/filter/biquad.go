// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package filter implements the second-order IIR sections and the
// RPM-adaptive notch bank used to clean gyroscope samples.
package filter

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Type selects the analog prototype of a biquad.
type Type int

// Filter types
const (
	LowPass Type = iota
	Notch
	BandPass
)

func (t Type) String() string {
	switch t {
	case LowPass:
		return "LPF"
	case Notch:
		return "NOTCH"
	case BandPass:
		return "BPF"
	default:
		return "UNKNOWN"
	}
}

// Realization selects the difference equation used by Apply.
type Realization int

// Realizations
const (
	DF2T Realization = iota // transposed direct form II
	DF1                     // direct form I
)

func (r Realization) String() string {
	if r == DF1 {
		return "DF1"
	}
	return "DF2T"
}

// Biquad is a second-order IIR section with coefficients normalized by a0.
//
// DF1 history and DF2T state are kept separately so either realization can
// be used on the same filter; Apply uses the configured one.
type Biquad struct {
	Type        Type
	Frequency   float64
	Q           float64
	SampleRate  float64
	Realization Realization

	b0, b1, b2 float64
	a1, a2     float64

	x1, x2, y1, y2 float64 // DF1
	s1, s2         float64 // DF2T
}

// NewBiquad creates a configured filter with zero history.
func NewBiquad(typ Type, frequency, q, sampleRate float64) (*Biquad, error) {
	f := &Biquad{}
	if err := f.Configure(typ, frequency, q, sampleRate); err != nil {
		return nil, err
	}
	return f, nil
}

// Configure recomputes the coefficients (audio EQ cookbook, bilinear
// transform with pre-warping). The history is left untouched so a running
// filter can be retuned without a discontinuity.
func (f *Biquad) Configure(typ Type, frequency, q, sampleRate float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	if q <= 0 {
		return fmt.Errorf("Q must be positive, got %g", q)
	}
	if frequency <= 0 || frequency >= sampleRate/2 {
		return fmt.Errorf("frequency %g Hz outside (0, %g)", frequency, sampleRate/2)
	}

	omega := 2 * math.Pi * frequency / sampleRate
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * q)

	var b0, b1, b2, a1, a2 float64
	switch typ {
	case LowPass:
		b0 = (1 - cs) / 2
		b1 = 1 - cs
		b2 = b0
		a1 = -2 * cs
		a2 = 1 - alpha
	case Notch:
		b0 = 1
		b1 = -2 * cs
		b2 = 1
		a1 = b1
		a2 = 1 - alpha
	case BandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a1 = -2 * cs
		a2 = 1 - alpha
	default:
		return fmt.Errorf("unknown filter type %d", typ)
	}

	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0

	f.Type = typ
	f.Frequency = frequency
	f.Q = q
	f.SampleRate = sampleRate
	return nil
}

// Reset clears the history of both realizations.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
	f.s1, f.s2 = 0, 0
}

// ApplyDF1 filters one sample with the direct form I equation.
func (f *Biquad) ApplyDF1(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// ApplyDF2T filters one sample with the transposed direct form II equation.
func (f *Biquad) ApplyDF2T(x float64) float64 {
	y := f.b0*x + f.s1
	f.s1 = f.b1*x - f.a1*y + f.s2
	f.s2 = f.b2*x - f.a2*y
	return y
}

// Apply filters one sample with the configured realization.
func (f *Biquad) Apply(x float64) float64 {
	if f.Realization == DF1 {
		return f.ApplyDF1(x)
	}
	return f.ApplyDF2T(x)
}

// CopyCoefficients takes the tuning of src without touching the history.
func (f *Biquad) CopyCoefficients(src *Biquad) {
	f.b0, f.b1, f.b2 = src.b0, src.b1, src.b2
	f.a1, f.a2 = src.a1, src.a2
	f.Type = src.Type
	f.Frequency = src.Frequency
	f.Q = src.Q
	f.SampleRate = src.SampleRate
}

// Coefficients returns b0, b1, b2, a1, a2.
func (f *Biquad) Coefficients() [5]float64 {
	return [5]float64{f.b0, f.b1, f.b2, f.a1, f.a2}
}

// Response evaluates the transfer function at a frequency.
func (f *Biquad) Response(frequency float64) complex128 {
	w := 2 * math.Pi * frequency / f.SampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(f.b0, 0) + complex(f.b1, 0)*z1 + complex(f.b2, 0)*z2
	den := 1 + complex(f.a1, 0)*z1 + complex(f.a2, 0)*z2
	return num / den
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package filter

import (
	"fmt"
	"math/cmplx"
)

// Axes is the number of gyroscope axes filtered by a bank.
const Axes = 3

const defaultNotchFrequency = 100

// RPMSource supplies the motor speeds the bank tunes to.
type RPMSource interface {
	MotorCount() int
	RPM(motor int) uint32
}

// BankConfig describes a notch bank.
type BankConfig struct {
	Motors             int
	Harmonics          int
	Q                  float64
	SampleRate         float64 // Hz
	MinFrequency       float64 // notches at or below are bypassed
	FadeRange          float64 // weight ramps from 0 to 1 over this span above MinFrequency
	MaxFilterableRatio float64 // fraction of SampleRate above which notches are bypassed
	Realization        Realization
}

// DefaultBankConfig returns the bank used with a 900 Hz gyro loop.
func DefaultBankConfig() BankConfig {
	return BankConfig{
		Motors:             4,
		Harmonics:          3,
		Q:                  500,
		SampleRate:         900,
		MinFrequency:       50,
		FadeRange:          50,
		MaxFilterableRatio: 0.48,
		Realization:        DF2T,
	}
}

// MaxFilterable returns the highest frequency the bank will notch.
func (c BankConfig) MaxFilterable() float64 {
	return c.MaxFilterableRatio * c.SampleRate
}

// Validate checks the configuration.
func (c BankConfig) Validate() error {
	if c.Motors < 1 {
		return fmt.Errorf("motors must be >= 1, got %d", c.Motors)
	}
	if c.Harmonics < 1 {
		return fmt.Errorf("harmonics must be >= 1, got %d", c.Harmonics)
	}
	if c.Q <= 0 {
		return fmt.Errorf("Q must be positive, got %g", c.Q)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", c.SampleRate)
	}
	if c.MinFrequency < 0 || c.FadeRange <= 0 {
		return fmt.Errorf("min frequency (%g) must be >= 0 and fade range (%g) > 0", c.MinFrequency, c.FadeRange)
	}
	if c.MaxFilterableRatio <= 0 || c.MaxFilterableRatio >= 0.5 {
		return fmt.Errorf("max filterable ratio must be in (0, 0.5), got %g", c.MaxFilterableRatio)
	}
	if c.MinFrequency >= c.MaxFilterable() {
		return fmt.Errorf("min frequency %g Hz is not below the max filterable %g Hz", c.MinFrequency, c.MaxFilterable())
	}
	if defaultNotchFrequency >= c.SampleRate/2 {
		return fmt.Errorf("sample rate %g Hz too low", c.SampleRate)
	}
	return nil
}

// NotchBank removes motor noise and its harmonics from every axis. Each
// stage is a notch plus a weight in [0,1] blending filtered and raw signal.
type NotchBank struct {
	cfg     BankConfig
	filters [Axes][][]*Biquad // [axis][motor][harmonic]
	weights [Axes][][]float64
}

// NewNotchBank allocates the bank with all notches at 100 Hz and full weight.
func NewNotchBank(cfg BankConfig) (*NotchBank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notch bank config: %w", err)
	}

	b := &NotchBank{cfg: cfg}
	for axis := 0; axis < Axes; axis++ {
		b.filters[axis] = make([][]*Biquad, cfg.Motors)
		b.weights[axis] = make([][]float64, cfg.Motors)
		for m := 0; m < cfg.Motors; m++ {
			b.filters[axis][m] = make([]*Biquad, cfg.Harmonics)
			b.weights[axis][m] = make([]float64, cfg.Harmonics)
			for h := 0; h < cfg.Harmonics; h++ {
				f, err := NewBiquad(Notch, defaultNotchFrequency, cfg.Q, cfg.SampleRate)
				if err != nil {
					return nil, err
				}
				f.Realization = cfg.Realization
				b.filters[axis][m][h] = f
				b.weights[axis][m][h] = 1
			}
		}
	}
	return b, nil
}

// Config returns the bank configuration.
func (b *NotchBank) Config() BankConfig {
	return b.cfg
}

// Weight computes the blend weight of a notch at frequency f and whether the
// notch should be retuned to it.
func (c BankConfig) Weight(f float64) (weight float64, retune bool) {
	switch {
	case f <= c.MinFrequency:
		return 0, false
	case f >= c.MaxFilterable():
		return 0, false
	case f < c.MinFrequency+c.FadeRange:
		return (f - c.MinFrequency) / c.FadeRange, true
	default:
		return 1, true
	}
}

// Update retunes every notch to the current motor speeds. Motors beyond the
// source's count are left as they are.
func (b *NotchBank) Update(src RPMSource) {
	motors := b.cfg.Motors
	if n := src.MotorCount(); n < motors {
		motors = n
	}

	for m := 0; m < motors; m++ {
		rpm := float64(src.RPM(m))
		for h := 0; h < b.cfg.Harmonics; h++ {
			f := rpm * float64(h+1) / 60
			w, retune := b.cfg.Weight(f)
			if retune {
				// Weight guarantees f is inside (0, fs/2)
				_ = b.filters[0][m][h].Configure(Notch, f, b.cfg.Q, b.cfg.SampleRate)
				for axis := 1; axis < Axes; axis++ {
					b.filters[axis][m][h].CopyCoefficients(b.filters[0][m][h])
				}
			}
			for axis := 0; axis < Axes; axis++ {
				b.weights[axis][m][h] = w
			}
		}
	}
}

// Apply passes one sample of an axis through every stage.
func (b *NotchBank) Apply(axis int, x float64) float64 {
	for m := range b.filters[axis] {
		for h, f := range b.filters[axis][m] {
			w := b.weights[axis][m][h]
			x = w*f.Apply(x) + (1-w)*x
		}
	}
	return x
}

// ApplyVector filters one sample of every axis.
func (b *NotchBank) ApplyVector(v [Axes]float64) [Axes]float64 {
	for axis := range v {
		v[axis] = b.Apply(axis, v[axis])
	}
	return v
}

// Stage returns the notch and weight of one stage.
func (b *NotchBank) Stage(axis, motor, harmonic int) (*Biquad, float64) {
	return b.filters[axis][motor][harmonic], b.weights[axis][motor][harmonic]
}

// Reset clears the history of every notch.
func (b *NotchBank) Reset() {
	for axis := range b.filters {
		for m := range b.filters[axis] {
			for _, f := range b.filters[axis][m] {
				f.Reset()
			}
		}
	}
}

// Response returns the steady-state gain of an axis cascade at a frequency,
// weights included.
func (b *NotchBank) Response(axis int, frequency float64) float64 {
	h := complex(1, 0)
	for m := range b.filters[axis] {
		for i, f := range b.filters[axis][m] {
			w := complex(b.weights[axis][m][i], 0)
			h *= w*f.Response(frequency) + (1 - w)
		}
	}
	return cmplx.Abs(h)
}

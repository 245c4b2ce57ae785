// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rig closes the loop of a flight controller on the bench: it runs
// the DShot engine against the simulated ESCs, feeds the tracked motor speeds
// into a notch bank and filters a synthetic gyro signal polluted with motor
// noise.
package rig

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/dshot/sim"
	"github.com/Thermoquad/bdshot/pkg/filter"
)

// Options tune the synthetic gyro and the bench.
type Options struct {
	Bench      sim.Options
	SignalHz   float64 // stick motion present on every axis
	SignalAmp  float64 // deg/s
	NoiseAmp   float64 // deg/s per motor at the fundamental, halved per harmonic
	WhiteNoise float64 // deg/s standard deviation
	Window     int     // gyro samples kept for the noise report
	Throttle   uint16  // initial raw throttle of every motor
}

// DefaultOptions returns a quiet frame with moderate motor noise.
func DefaultOptions() Options {
	return Options{
		Bench:     sim.DefaultOptions(),
		SignalHz:  2,
		SignalAmp: 100,
		NoiseAmp:  20,
		Window:    900,
	}
}

// axisGain spreads motor noise unevenly over the axes, yaw the least.
var axisGain = [filter.Axes]float64{1, 0.8, 0.5}

// Cycle is the outcome of one loop iteration.
type Cycle struct {
	Index     uint64
	Responses []dshot.Response
	Anomalies [][]dshot.ValidationError // per response
	Clean     [filter.Axes]float64
	Raw       [filter.Axes]float64
	Filtered  [filter.Axes]float64
}

// Rig owns the engine, bench and notch bank of one simulated craft.
type Rig struct {
	cfg       dshot.Config
	opts      Options
	engine    *dshot.Engine
	bench     *sim.Bench
	bank      *filter.NotchBank
	validator *dshot.Validator
	stats     *dshot.Statistics
	rng       *rand.Rand

	throttle []uint16
	phase    [][]float64 // [motor][harmonic] noise phase in radians
	samples  uint64

	rawErr      [filter.Axes][]float64
	filteredErr [filter.Axes][]float64
}

// New wires an engine to a fresh bench and a notch bank. The bench cycle time
// follows the bank sample rate so that one engine cycle is one gyro sample.
func New(cfg dshot.Config, bank filter.BankConfig, limits dshot.Limits, opts Options) (*Rig, error) {
	if opts.Window < 1 {
		return nil, fmt.Errorf("window must be >= 1, got %d", opts.Window)
	}
	if bank.Motors != cfg.MotorCount() {
		return nil, fmt.Errorf("notch bank has %d motors, engine has %d", bank.Motors, cfg.MotorCount())
	}

	nb, err := filter.NewNotchBank(bank)
	if err != nil {
		return nil, err
	}

	benchOpts := opts.Bench
	benchOpts.CycleTime = sampleDuration(bank.SampleRate)
	b, err := sim.NewBench(cfg, benchOpts)
	if err != nil {
		return nil, err
	}
	engine, err := dshot.NewEngine(cfg, b, b)
	if err != nil {
		return nil, err
	}
	b.Attach(engine)

	r := &Rig{
		cfg:       cfg,
		opts:      opts,
		engine:    engine,
		bench:     b,
		bank:      nb,
		validator: dshot.NewValidator(limits),
		stats:     dshot.NewStatistics(),
		rng:       rand.New(rand.NewSource(benchOpts.Seed)),
		throttle:  make([]uint16, cfg.MotorCount()),
		phase:     make([][]float64, cfg.MotorCount()),
	}
	for m := range r.phase {
		r.throttle[m] = opts.Throttle
		r.phase[m] = make([]float64, bank.Harmonics)
		for h := range r.phase[m] {
			// stagger the motors so identical speeds neither cancel nor stack
			r.phase[m][h] = float64(m) * 0.7
		}
	}
	return r, nil
}

// Config returns the protocol configuration.
func (r *Rig) Config() dshot.Config { return r.cfg }

// Engine returns the DShot engine.
func (r *Rig) Engine() *dshot.Engine { return r.engine }

// Bench returns the simulated ESCs.
func (r *Rig) Bench() *sim.Bench { return r.bench }

// Bank returns the notch bank.
func (r *Rig) Bank() *filter.NotchBank { return r.bank }

// Tracker returns the motor state tracker of the engine.
func (r *Rig) Tracker() *dshot.Tracker { return r.engine.Tracker() }

// Stats returns the response statistics.
func (r *Rig) Stats() *dshot.Statistics { return r.stats }

// Throttle returns a copy of the raw throttle commands.
func (r *Rig) Throttle() []uint16 {
	return append([]uint16(nil), r.throttle...)
}

// SetThrottle sets the raw throttle command of one motor.
func (r *Rig) SetThrottle(motor int, raw uint16) error {
	if motor < 0 || motor >= len(r.throttle) {
		return fmt.Errorf("motor %d out of range (0-%d)", motor, len(r.throttle)-1)
	}
	r.throttle[motor] = raw
	return nil
}

// SetAllThrottle sets the raw throttle command of every motor.
func (r *Rig) SetAllThrottle(raw uint16) {
	for m := range r.throttle {
		r.throttle[m] = raw
	}
}

// Step runs one engine cycle, retunes the bank and filters one gyro sample.
// Transmit failures are logged and counted as missing responses next cycle.
func (r *Rig) Step() Cycle {
	responses, err := r.engine.Cycle(r.throttle)
	if err != nil {
		glog.Warningf("cycle %d: %v", r.engine.Cycles(), err)
	}
	// Completion may run on other goroutines; the loop period covers it
	r.bench.Wait()

	c := Cycle{
		Index:     r.engine.Cycles(),
		Responses: responses,
		Anomalies: make([][]dshot.ValidationError, len(responses)),
	}
	for i, resp := range responses {
		c.Anomalies[i] = r.validator.Validate(resp)
		r.stats.Update(resp, c.Anomalies[i])
	}

	r.bank.Update(r.engine.Tracker())

	c.Clean, c.Raw = r.gyroSample()
	c.Filtered = r.bank.ApplyVector(c.Raw)
	for axis := 0; axis < filter.Axes; axis++ {
		r.rawErr[axis] = appendWindow(r.rawErr[axis], c.Raw[axis]-c.Clean[axis], r.opts.Window)
		r.filteredErr[axis] = appendWindow(r.filteredErr[axis], c.Filtered[axis]-c.Clean[axis], r.opts.Window)
	}
	return c
}

// Run steps the rig n times and returns the last cycle.
func (r *Rig) Run(n int) Cycle {
	var c Cycle
	for i := 0; i < n; i++ {
		c = r.Step()
	}
	return c
}

// gyroSample advances the motor noise oscillators by one sample period.
func (r *Rig) gyroSample() (clean, raw [filter.Axes]float64) {
	fs := r.bank.Config().SampleRate
	t := float64(r.samples) / fs
	r.samples++

	var noise float64
	for m := range r.phase {
		rpm := r.bench.Motor(m).RPM
		for h := range r.phase[m] {
			f := rpm * float64(h+1) / 60
			// the gyro's own low-pass removes what would alias
			if f >= fs/2 {
				continue
			}
			r.phase[m][h] = math.Mod(r.phase[m][h]+2*math.Pi*f/fs, 2*math.Pi)
			noise += r.opts.NoiseAmp / math.Pow(2, float64(h)) * math.Sin(r.phase[m][h])
		}
	}

	for axis := 0; axis < filter.Axes; axis++ {
		clean[axis] = r.opts.SignalAmp * math.Sin(2*math.Pi*r.opts.SignalHz*t+float64(axis)*2*math.Pi/3)
		raw[axis] = clean[axis] + axisGain[axis]*noise
		if r.opts.WhiteNoise > 0 {
			raw[axis] += r.opts.WhiteNoise * r.rng.NormFloat64()
		}
	}
	return clean, raw
}

// Report summarizes how much motor noise the bank removed over the window.
type Report struct {
	Samples       int
	RawRMS        [filter.Axes]float64
	FilteredRMS   [filter.Axes]float64
	AttenuationDB [filter.Axes]float64 // negative when noise was removed
	RPMError      float64              // mean absolute tracked-vs-true RPM
	MotorRPM      []float64            // true RPM per motor
}

// Report computes the noise figures over the last Window samples.
func (r *Rig) Report() Report {
	rep := Report{
		Samples:  len(r.rawErr[0]),
		MotorRPM: make([]float64, len(r.throttle)),
	}
	for axis := 0; axis < filter.Axes; axis++ {
		rep.RawRMS[axis] = rms(r.rawErr[axis])
		rep.FilteredRMS[axis] = rms(r.filteredErr[axis])
		rep.AttenuationDB[axis] = decibels(rep.FilteredRMS[axis], rep.RawRMS[axis])
	}

	diffs := make([]float64, len(r.throttle))
	for m := range r.throttle {
		rep.MotorRPM[m] = r.bench.Motor(m).RPM
		diffs[m] = math.Abs(float64(r.engine.Tracker().RPM(m)) - rep.MotorRPM[m])
	}
	rep.RPMError = stat.Mean(diffs, nil)
	return rep
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
}

func decibels(out, in float64) float64 {
	if in == 0 {
		return 0
	}
	return 20 * math.Log10(out/in)
}

func sampleDuration(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}

func appendWindow(x []float64, v float64, window int) []float64 {
	x = append(x, v)
	if len(x) > window {
		x = append(x[:0], x[len(x)-window:]...)
	}
	return x
}

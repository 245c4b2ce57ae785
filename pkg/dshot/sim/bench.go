// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a software ESC bench. It implements the dshot hardware
// interfaces by replaying the playback words the way an ESC samples its
// input line, spinning a simple motor model and answering with oversampled
// telemetry captures.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

// maxPeriodMicros is what a stopped motor reports (mantissa 0x1FF, exponent 7).
const maxPeriodMicros = 0x1FF << 7

// Options tune the simulated ESCs and line.
type Options struct {
	MaxRPM       float64       // RPM at full throttle
	TimeConstant time.Duration // first-order spin-up time constant
	CycleTime    time.Duration // simulated time between playbacks
	GapMicros    int           // silence before the response
	DropRate     float64       // probability a response is missing
	CorruptRate  float64       // probability one response bit is flipped
	Seed         int64
	Async        bool // complete transfers from a separate goroutine
}

// DefaultOptions returns a clean link with 2207-class motors.
func DefaultOptions() Options {
	return Options{
		MaxRPM:       30000,
		TimeConstant: 40 * time.Millisecond,
		CycleTime:    time.Second / 900,
		GapMicros:    25,
		Seed:         1,
	}
}

// MotorStatus is the true state of a simulated motor.
type MotorStatus struct {
	Value     uint16 // last accepted frame value
	RPM       float64
	Frames    uint64
	BadFrames uint64
	Dropped   uint64
	Corrupted uint64
}

// Bench simulates the ESCs on every port of a configuration.
type Bench struct {
	cfg  dshot.Config
	opts Options

	mu       sync.Mutex
	handler  dshot.CompletionHandler
	rng      *rand.Rand
	motors   []MotorStatus
	replies  [][]uint32 // per port: raw response per motor, NoResponse if silent
	inFlight sync.WaitGroup
}

// NewBench creates a bench for cfg.
func NewBench(cfg dshot.Config, opts Options) (*Bench, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.MaxRPM <= 0 {
		return nil, errors.New("max RPM must be positive")
	}
	if opts.GapMicros < 0 {
		return nil, errors.New("gap must not be negative")
	}

	b := &Bench{
		cfg:     cfg,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		motors:  make([]MotorStatus, cfg.MotorCount()),
		replies: make([][]uint32, len(cfg.Ports)),
	}
	for i, p := range cfg.Ports {
		b.replies[i] = make([]uint32, len(p.Motors))
		for j := range b.replies[i] {
			b.replies[i][j] = dshot.NoResponse
		}
	}
	return b, nil
}

// Attach sets the receiver of completion events, normally the engine.
func (b *Bench) Attach(h dshot.CompletionHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Motor returns the true state of a motor.
func (b *Bench) Motor(motor int) MotorStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motors[motor]
}

// SetRPM forces a motor speed, e.g. to start a test at a known RPM.
func (b *Bench) SetRPM(motor int, rpm float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.motors[motor].RPM = rpm
}

// SetLink changes the drop and corruption probabilities.
func (b *Bench) SetLink(dropRate, corruptRate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts.DropRate = dropRate
	b.opts.CorruptRate = corruptRate
}

// Wait blocks until asynchronous transfers have completed.
func (b *Bench) Wait() {
	b.inFlight.Wait()
}

// StartPlayback implements dshot.OutputBank.
func (b *Bench) StartPlayback(port int, words []uint32) error {
	if port < 0 || port >= len(b.cfg.Ports) {
		return fmt.Errorf("unknown port %d", port)
	}
	p := b.cfg.Ports[port]

	b.mu.Lock()
	for i, m := range p.Motors {
		frame, err := ReplayFrame(b.cfg.Policy, words, p.Pins[i])
		st := &b.motors[m]
		if err != nil {
			glog.V(2).Infof("sim: motor %d: %v", m, err)
			st.BadFrames++
			b.replies[port][i] = dshot.NoResponse
			continue
		}
		st.Frames++
		st.Value = frame.Value()
		b.spin(st)
		b.replies[port][i] = b.respond(st)
	}
	b.mu.Unlock()

	b.complete(port)
	return nil
}

// StartCapture implements dshot.InputBank.
func (b *Bench) StartCapture(port int, dst []uint32) error {
	if port < 0 || port >= len(b.cfg.Ports) {
		return fmt.Errorf("unknown port %d", port)
	}
	p := b.cfg.Ports[port]

	b.mu.Lock()
	replies := append([]uint32(nil), b.replies[port]...)
	b.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}
	for i, raw := range replies {
		WriteResponse(dst, p.Pins[i], raw, b.gapSamples(), b.cfg.Oversampling)
	}

	b.complete(port)
	return nil
}

func (b *Bench) complete(port int) {
	b.mu.Lock()
	h := b.handler
	async := b.opts.Async
	b.mu.Unlock()
	if h == nil {
		return
	}

	if !async {
		h.HandleEvent(port, dshot.EventTransferComplete)
		return
	}
	b.inFlight.Add(1)
	go func() {
		defer b.inFlight.Done()
		h.HandleEvent(port, dshot.EventTransferComplete)
	}()
}

// spin advances the motor model by one cycle. Called with mu held.
func (b *Bench) spin(st *MotorStatus) {
	target := 0.0
	if st.Value >= dshot.MinThrottle {
		span := float64(dshot.MaxThrottle - dshot.MinThrottle)
		target = float64(st.Value-dshot.MinThrottle) / span * b.opts.MaxRPM
	}
	k := 1.0
	if b.opts.TimeConstant > 0 {
		k = 1 - math.Exp(-b.opts.CycleTime.Seconds()/b.opts.TimeConstant.Seconds())
	}
	st.RPM += (target - st.RPM) * k
}

// respond builds the raw line word for the motor's current speed. Called
// with mu held.
func (b *Bench) respond(st *MotorStatus) uint32 {
	if b.opts.DropRate > 0 && b.rng.Float64() < b.opts.DropRate {
		st.Dropped++
		return dshot.NoResponse
	}

	raw := dshot.EncodeGCR(dshot.EncodeTelemetry(PeriodForRPM(st.RPM, b.cfg.PolesPerMotor)))
	if b.opts.CorruptRate > 0 && b.rng.Float64() < b.opts.CorruptRate {
		st.Corrupted++
		// the start bit stays low so the decoder still locks on
		raw ^= 1 << uint(b.rng.Intn(dshot.ResponseLength-1))
	}
	return raw
}

func (b *Bench) gapSamples() int {
	return b.opts.GapMicros * b.cfg.ResponseBitRate() * b.cfg.Oversampling / 1000
}

// PeriodForRPM is the electrical period an ESC reports at a mechanical RPM.
func PeriodForRPM(rpm float64, poles int) uint32 {
	if rpm < 1 {
		return maxPeriodMicros
	}
	erpm := rpm * float64(poles) / 2
	period := math.Round(60e6 / erpm)
	if period > maxPeriodMicros {
		return maxPeriodMicros
	}
	if period < 1 {
		return 1
	}
	return uint32(period)
}

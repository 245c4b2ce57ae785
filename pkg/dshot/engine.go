// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Response is the decode outcome of one motor in one cycle.
type Response struct {
	Motor     int
	Raw       uint32
	Telemetry Telemetry
	Err       error
	State     MotorState
}

// CaptureFunc receives every completed capture together with the frames that
// triggered it. samples is only valid for the duration of the call.
type CaptureFunc func(cycle uint64, port Port, frames []Frame, samples []uint32)

// Engine runs the per-cycle protocol: decode the previous cycle's captures,
// update the tracker, then encode and transmit the next frames.
//
// Cycle must be called from a single goroutine. HandleEvent may be called
// from any goroutine.
type Engine struct {
	cfg       Config
	out       OutputBank
	decoder   *CaptureDecoder
	tracker   *Tracker
	channels  []*Channel
	cycle     uint64
	skipped   uint64
	onCapture CaptureFunc
}

// NewEngine validates the configuration and allocates the channels.
func NewEngine(cfg Config, out OutputBank, in InputBank) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if out == nil || in == nil {
		return nil, errors.New("output and input banks are required")
	}

	e := &Engine{
		cfg:     cfg,
		out:     out,
		decoder: NewCaptureDecoder(cfg),
		tracker: NewTracker(cfg.MotorCount(), cfg.PolesPerMotor),
	}
	for i, p := range cfg.Ports {
		e.channels = append(e.channels, NewChannel(i, p, cfg, in))
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Tracker returns the motor state tracker.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Channel returns the channel of a port.
func (e *Engine) Channel(port int) *Channel {
	return e.channels[port]
}

// Cycles returns the number of completed Cycle calls.
func (e *Engine) Cycles() uint64 {
	return e.cycle
}

// Skipped returns how many port transmissions were skipped because the
// previous transfer had not finished.
func (e *Engine) Skipped() uint64 {
	return e.skipped
}

// OnCapture registers a function called for every ready capture, before it
// is decoded.
func (e *Engine) OnCapture(fn CaptureFunc) {
	e.onCapture = fn
}

// HandleEvent implements CompletionHandler.
func (e *Engine) HandleEvent(port int, ev Event) {
	if port < 0 || port >= len(e.channels) {
		glog.Warningf("event %s for unknown port %d", ev, port)
		return
	}
	if err := e.channels[port].HandleEvent(ev); err != nil {
		glog.V(2).Infof("port %d: %v", port, err)
	}
}

// Cycle decodes the responses captured since the previous call and sends the
// next throttle values, indexed by motor. The first cycle has nothing to
// decode and returns no responses.
func (e *Engine) Cycle(throttle []uint16) ([]Response, error) {
	if len(throttle) != e.tracker.MotorCount() {
		return nil, fmt.Errorf("got %d throttle values for %d motors", len(throttle), e.tracker.MotorCount())
	}

	var responses []Response
	if e.cycle > 0 {
		responses = e.collect()
	}

	var errs []error
	for _, ch := range e.channels {
		port := ch.Port()
		frames := make([]Frame, len(port.Motors))
		for i, m := range port.Motors {
			frames[i] = EncodeThrottle(throttle[m])
		}
		err := ch.Transmit(frames, e.out)
		switch {
		case errors.Is(err, ErrChannelBusy):
			e.skipped++
			glog.V(2).Infof("skipping port %s: %v", port.Name, err)
		case err != nil:
			errs = append(errs, err)
		}
	}

	e.cycle++
	return responses, errors.Join(errs...)
}

func (e *Engine) collect() []Response {
	responses := make([]Response, 0, e.tracker.MotorCount())

	for _, ch := range e.channels {
		port := ch.Port()
		samples, ready := ch.Collect()
		if ready && e.onCapture != nil {
			e.onCapture(e.cycle-1, port, ch.Frames(), samples)
		}

		for i, m := range port.Motors {
			r := Response{Motor: m, Raw: NoResponse}
			if !ready {
				r.Err = ErrNoResponse
			} else {
				r.Raw, r.Err = e.decoder.Decode(samples, port.Pins[i])
				if r.Err == nil {
					r.Telemetry, r.Err = DecodeTelemetry(r.Raw)
				}
			}
			if r.Err != nil {
				glog.V(2).Infof("motor %d: %v", m, r.Err)
			}
			r.State = e.tracker.Observe(m, r.Telemetry, r.Err)
			responses = append(responses, r)
		}
	}
	return responses
}

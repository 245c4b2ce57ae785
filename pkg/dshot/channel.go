// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// ErrUnexpectedEvent is returned when a hardware event does not match the
// channel state (half transfer, error, duplicate completion).
var ErrUnexpectedEvent = errors.New("unexpected transfer event")

// ErrChannelBusy is returned by Transmit while the hardware still owns the
// waveform.
var ErrChannelBusy = errors.New("transfer in flight")

// ChannelState is the phase of one port's transfer cycle.
type ChannelState int

// Channel states
const (
	StateIdle ChannelState = iota
	StateTransmitting
	StateCapturing
	StateReady
)

func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTransmitting:
		return "TRANSMITTING"
	case StateCapturing:
		return "CAPTURING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Channel owns the playback and capture buffers of one port and walks the
// Idle -> Transmitting -> Capturing -> Ready cycle.
//
// Buffers change hands at every transition: the waveform belongs to the
// caller until Transmit and to the hardware until completion; the capture
// buffer belongs to the hardware while Capturing and to the caller once Ready.
type Channel struct {
	index    int
	port     Port
	waveform *Waveform
	frames   []Frame
	capture  []uint32
	in       InputBank

	mu       sync.Mutex
	state    ChannelState
	rejected uint64
}

// NewChannel creates the channel for a port.
func NewChannel(index int, port Port, cfg Config, in InputBank) *Channel {
	return &Channel{
		index:    index,
		port:     port,
		waveform: NewWaveform(cfg.Policy, port.Pins),
		frames:   make([]Frame, len(port.Pins)),
		capture:  make([]uint32, cfg.CaptureLength()),
		in:       in,
		state:    StateIdle,
	}
}

// State returns the current state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rejected returns how many events were discarded as spurious.
func (c *Channel) Rejected() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

// Port returns the port description.
func (c *Channel) Port() Port {
	return c.port
}

// Waveform returns the playback buffer.
func (c *Channel) Waveform() *Waveform {
	return c.waveform
}

// Capture returns the capture buffer. Only meaningful while Ready.
func (c *Channel) Capture() []uint32 {
	return c.capture
}

// Frames returns the frames of the last transmission.
func (c *Channel) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Transmit fills the waveform with frames and starts playback. While a
// transfer is in flight it leaves the waveform alone and returns
// ErrChannelBusy.
func (c *Channel) Transmit(frames []Frame, out OutputBank) error {
	c.mu.Lock()
	if c.state == StateTransmitting || c.state == StateCapturing {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("channel %s: %w while %s", c.port.Name, ErrChannelBusy, state)
	}
	if err := c.waveform.Fill(frames); err != nil {
		c.mu.Unlock()
		return err
	}
	copy(c.frames, frames)
	c.state = StateTransmitting
	c.mu.Unlock()

	// The driver may report completion before StartPlayback returns.
	if err := out.StartPlayback(c.index, c.waveform.Words()); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("channel %s: start playback: %w", c.port.Name, err)
	}
	return nil
}

// HandleEvent advances the state machine on a hardware event. Only
// EventTransferComplete in Transmitting or Capturing is accepted; everything
// else is counted and rejected.
func (c *Channel) HandleEvent(ev Event) error {
	c.mu.Lock()
	if ev != EventTransferComplete {
		c.rejected++
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev, state)
	}

	switch c.state {
	case StateTransmitting:
		c.state = StateCapturing
		c.mu.Unlock()
		if err := c.in.StartCapture(c.index, c.capture); err != nil {
			c.mu.Lock()
			c.state = StateIdle
			c.mu.Unlock()
			return fmt.Errorf("channel %s: start capture: %w", c.port.Name, err)
		}
		return nil

	case StateCapturing:
		c.state = StateReady
		c.mu.Unlock()
		return nil

	default:
		c.rejected++
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev, state)
	}
}

// Collect hands the capture buffer to the caller if the channel is Ready.
// A channel still in flight keeps its state so the outstanding transfer can
// finish; its capture is collected on a later cycle.
func (c *Channel) Collect() ([]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		c.state = StateIdle
		return c.capture, true
	case StateTransmitting, StateCapturing:
		glog.V(2).Infof("channel %s: cycle fired while %s", c.port.Name, c.state)
		return nil, false
	default:
		return nil, false
	}
}

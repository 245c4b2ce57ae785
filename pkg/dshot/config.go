// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"fmt"
	"time"
)

// Port groups the motors whose pins share one GPIO port and therefore one
// playback/capture buffer.
type Port struct {
	Name   string
	Motors []int   // global motor indices
	Pins   []uint8 // pin number of each motor on the port
}

// Config holds the build-time protocol parameters.
type Config struct {
	BitRate          int // kbit/s
	Oversampling     int
	PolesPerMotor    int
	TelemetryRateNum int
	TelemetryRateDen int
	ResponseGapUs    int
	Policy           EncodingPolicy
	Ports            []Port
}

// DefaultPorts is the reference wiring: motors 1 and 4 on port A (PA3, PA2),
// motors 2 and 3 on port B (PB0, PB1).
func DefaultPorts() []Port {
	return []Port{
		{Name: "A", Motors: []int{0, 3}, Pins: []uint8{3, 2}},
		{Name: "B", Motors: []int{1, 2}, Pins: []uint8{0, 1}},
	}
}

// DefaultConfig returns the reference DShot300 setup.
func DefaultConfig() Config {
	return Config{
		BitRate:          DefaultBitRate,
		Oversampling:     DefaultOversampling,
		PolesPerMotor:    DefaultPolesPerMotor,
		TelemetryRateNum: DefaultTelemetryRateNum,
		TelemetryRateDen: DefaultTelemetryRateDen,
		ResponseGapUs:    DefaultResponseGapUs,
		Policy:           PolicyThreePhase,
		Ports:            DefaultPorts(),
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	switch c.BitRate {
	case DShot150, DShot300, DShot600, DShot1200:
	default:
		return fmt.Errorf("unsupported bit rate %d (use 150, 300, 600 or 1200)", c.BitRate)
	}
	if c.Oversampling < 1 {
		return fmt.Errorf("oversampling must be >= 1, got %d", c.Oversampling)
	}
	if c.PolesPerMotor < 2 || c.PolesPerMotor%2 != 0 {
		return fmt.Errorf("poles per motor must be an even number >= 2, got %d", c.PolesPerMotor)
	}
	if c.TelemetryRateNum <= 0 || c.TelemetryRateDen <= 0 {
		return fmt.Errorf("telemetry rate ratio must be positive, got %d/%d", c.TelemetryRateNum, c.TelemetryRateDen)
	}
	if c.ResponseGapUs < 0 {
		return fmt.Errorf("response gap must not be negative, got %d", c.ResponseGapUs)
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if len(c.Ports) == 0 {
		return fmt.Errorf("at least one port is required")
	}

	seen := make(map[int]bool)
	for _, p := range c.Ports {
		if len(p.Motors) == 0 || len(p.Motors) != len(p.Pins) {
			return fmt.Errorf("port %s: motors (%d) and pins (%d) must be non-empty and match",
				p.Name, len(p.Motors), len(p.Pins))
		}
		for i, m := range p.Motors {
			if m < 0 || seen[m] {
				return fmt.Errorf("port %s: invalid or duplicate motor index %d", p.Name, m)
			}
			seen[m] = true
			if p.Pins[i] > 15 {
				return fmt.Errorf("port %s: pin %d out of range 0-15", p.Name, p.Pins[i])
			}
		}
	}
	for m := 0; m < len(seen); m++ {
		if !seen[m] {
			return fmt.Errorf("motor indices must be contiguous from 0, missing %d", m)
		}
	}
	return nil
}

// MotorCount returns the number of motors across all ports.
func (c Config) MotorCount() int {
	n := 0
	for _, p := range c.Ports {
		n += len(p.Motors)
	}
	return n
}

// ResponseBitRate returns the ESC telemetry bit rate in kbit/s.
func (c Config) ResponseBitRate() int {
	return c.BitRate * c.TelemetryRateNum / c.TelemetryRateDen
}

// GapBits is the number of telemetry bit periods covering the silence
// between the end of the frame and the start of the response.
func (c Config) GapBits() int {
	return c.ResponseGapUs * c.ResponseBitRate() / 1000
}

// StartupWindow is the number of capture samples searched for the start bit.
func (c Config) StartupWindow() int {
	return c.GapBits() * c.Oversampling
}

// CaptureLength is the number of samples taken per capture.
func (c Config) CaptureLength() int {
	return (c.GapBits() + ResponseLength + 1) * c.Oversampling
}

// BitPeriod returns the duration of one command bit.
func (c Config) BitPeriod() time.Duration {
	return time.Second / time.Duration(c.BitRate*1000)
}

// SamplePeriod returns the capture sample period.
func (c Config) SamplePeriod() time.Duration {
	return time.Second / time.Duration(c.ResponseBitRate()*1000*c.Oversampling)
}

// FrameDuration returns the playback time of one waveform buffer.
func (c Config) FrameDuration() time.Duration {
	return c.BitPeriod() * BufferSlots
}

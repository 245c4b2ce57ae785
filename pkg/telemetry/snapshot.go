// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry publishes per-cycle motor snapshots over MQTT.
package telemetry

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
)

// MotorSnapshot is the state of one motor and its notches.
type MotorSnapshot struct {
	Motor   uint8     `cbor:"0,keyasint"`
	RPM     uint32    `cbor:"1,keyasint"`
	Error   float64   `cbor:"2,keyasint"`
	Notches []float64 `cbor:"3,keyasint"` // center frequency per harmonic, Hz
	Weights []float64 `cbor:"4,keyasint"`
}

// Snapshot is one published message.
type Snapshot struct {
	Cycle     uint64          `cbor:"0,keyasint"`
	Timestamp int64           `cbor:"1,keyasint"` // unix nanoseconds
	Motors    []MotorSnapshot `cbor:"2,keyasint"`
}

// NewSnapshot captures the tracker and, when bank is non-nil, the axis 0
// notches of every motor.
func NewSnapshot(cycle uint64, tracker *dshot.Tracker, bank *filter.NotchBank) *Snapshot {
	s := &Snapshot{
		Cycle:     cycle,
		Timestamp: time.Now().UnixNano(),
		Motors:    make([]MotorSnapshot, tracker.MotorCount()),
	}
	for m := range s.Motors {
		st := tracker.State(m)
		ms := MotorSnapshot{Motor: uint8(m), RPM: st.RPM, Error: st.Error}
		if bank != nil && m < bank.Config().Motors {
			for h := 0; h < bank.Config().Harmonics; h++ {
				f, w := bank.Stage(0, m, h)
				ms.Notches = append(ms.Notches, f.Frequency)
				ms.Weights = append(ms.Weights, w)
			}
		}
		s.Motors[m] = ms
	}
	return s
}

// Marshal encodes the snapshot as deterministic CBOR.
func (s *Snapshot) Marshal() ([]byte, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	data, err := mode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a published snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

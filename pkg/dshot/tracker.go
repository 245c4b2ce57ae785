// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

// MotorState is the last known speed of a motor and how much the recent
// responses can be trusted. Error decays towards 0 on good responses and
// approaches 100 under sustained failure.
type MotorState struct {
	RPM   uint32
	Error float64
}

// Tracker keeps the per-motor RPM state across cycles.
type Tracker struct {
	poles  int
	motors []MotorState
}

// NewTracker creates a tracker for n motors with the given pole count.
func NewTracker(n, poles int) *Tracker {
	return &Tracker{
		poles:  poles,
		motors: make([]MotorState, n),
	}
}

// Observe folds one decode outcome into the motor state. A failed decode
// keeps the previous RPM so downstream filters degrade gracefully.
func (t *Tracker) Observe(motor int, telemetry Telemetry, err error) MotorState {
	s := &t.motors[motor]
	if err == nil {
		s.RPM = telemetry.RPM(t.poles)
		s.Error = errorDecay * s.Error
	} else {
		s.Error = errorDecay*s.Error + errorPenalty
	}
	return *s
}

// MotorCount returns the number of tracked motors.
func (t *Tracker) MotorCount() int {
	return len(t.motors)
}

// RPM returns the last known RPM of a motor.
func (t *Tracker) RPM(motor int) uint32 {
	return t.motors[motor].RPM
}

// Error returns the error score of a motor.
func (t *Tracker) Error(motor int) float64 {
	return t.motors[motor].Error
}

// State returns a copy of a motor's state.
func (t *Tracker) State(motor int) MotorState {
	return t.motors[motor]
}

// States returns a copy of all motor states.
func (t *Tracker) States() []MotorState {
	return append([]MotorState(nil), t.motors...)
}

// Set overrides a motor's state, e.g. when restoring a snapshot.
func (t *Tracker) Set(motor int, s MotorState) {
	t.motors[motor] = s
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import "fmt"

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyHighRPM AnomalyType = iota
	AnomalyRPMJump
	AnomalyDistrusted
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyHighRPM:
		return "HIGH_RPM"
	case AnomalyRPMJump:
		return "RPM_JUMP"
	case AnomalyDistrusted:
		return "DISTRUSTED"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a telemetry validation failure
type ValidationError struct {
	Type    AnomalyType
	Motor   int
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Limits bounds what a plausible motor reading looks like.
type Limits struct {
	MaxRPM     uint32  // 0 disables the check
	MaxRPMJump uint32  // largest change between two good readings, 0 disables
	MaxError   float64 // error score above which readings are distrusted, 0 disables
}

// DefaultLimits suits small multirotor motors.
func DefaultLimits() Limits {
	return Limits{
		MaxRPM:     60000,
		MaxRPMJump: 10000,
		MaxError:   50,
	}
}

// Validator checks decoded responses against Limits. It remembers the last
// good RPM of each motor for the jump check.
type Validator struct {
	limits Limits
	last   map[int]uint32
}

// NewValidator creates a validator.
func NewValidator(limits Limits) *Validator {
	return &Validator{
		limits: limits,
		last:   make(map[int]uint32),
	}
}

// Validate returns the anomalies of one response (empty if plausible).
// Failed decodes are not anomalies; they are counted by Statistics.
func (v *Validator) Validate(r Response) []ValidationError {
	errors := []ValidationError{}

	if v.limits.MaxError > 0 && r.State.Error > v.limits.MaxError {
		errors = append(errors, ValidationError{
			Type:    AnomalyDistrusted,
			Motor:   r.Motor,
			Message: fmt.Sprintf("Motor %d error score %.1f above %.1f", r.Motor, r.State.Error, v.limits.MaxError),
			Details: map[string]interface{}{"error": r.State.Error, "max": v.limits.MaxError},
		})
	}

	if r.Err != nil {
		return errors
	}

	rpm := r.State.RPM
	if v.limits.MaxRPM > 0 && rpm > v.limits.MaxRPM {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighRPM,
			Motor:   r.Motor,
			Message: fmt.Sprintf("Motor %d high RPM (rpm=%d, max %d)", r.Motor, rpm, v.limits.MaxRPM),
			Details: map[string]interface{}{"rpm": rpm, "max": v.limits.MaxRPM},
		})
	}

	if prev, ok := v.last[r.Motor]; ok && v.limits.MaxRPMJump > 0 {
		delta := rpm - prev
		if prev > rpm {
			delta = prev - rpm
		}
		if delta > v.limits.MaxRPMJump {
			errors = append(errors, ValidationError{
				Type:    AnomalyRPMJump,
				Motor:   r.Motor,
				Message: fmt.Sprintf("Motor %d RPM jump %d -> %d (max %d)", r.Motor, prev, rpm, v.limits.MaxRPMJump),
				Details: map[string]interface{}{"from": prev, "to": rpm, "max": v.limits.MaxRPMJump},
			})
		}
	}
	v.last[r.Motor] = rpm

	return errors
}

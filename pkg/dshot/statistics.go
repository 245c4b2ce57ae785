// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks response statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalResponses  uint64
	ValidResponses  uint64
	NoResponses     uint64
	InvalidSymbols  uint64
	ChecksumErrors  uint64
	ZeroPeriods     uint64
	AnomalousValues uint64
	HighRPM         uint64
	RPMJumps        uint64
	Distrusted      uint64

	// Rates (calculated)
	ResponseRate float64 // responses/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a response and its anomalies
func (s *Statistics) Update(r Response, validationErrors []ValidationError) {
	s.TotalResponses++
	s.LastUpdateTime = time.Now()

	if r.Err != nil {
		switch {
		case errors.Is(r.Err, ErrNoResponse):
			s.NoResponses++
		case errors.Is(r.Err, ErrInvalidSymbol):
			s.InvalidSymbols++
		case errors.Is(r.Err, ErrChecksum):
			s.ChecksumErrors++
		case errors.Is(r.Err, ErrZeroPeriod):
			s.ZeroPeriods++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidResponses++
		return
	}

	s.AnomalousValues++
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyHighRPM:
			s.HighRPM++
		case AnomalyRPMJump:
			s.RPMJumps++
		case AnomalyDistrusted:
			s.Distrusted++
		}
	}
}

// Failures returns the number of responses that did not decode.
func (s *Statistics) Failures() uint64 {
	return s.NoResponses + s.InvalidSymbols + s.ChecksumErrors + s.ZeroPeriods
}

// CalculateRates calculates response and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ResponseRate = float64(s.TotalResponses) / elapsed
		s.ErrorRate = float64(s.Failures()+s.AnomalousValues) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Responses: %8d\n", s.TotalResponses)
	result += fmt.Sprintf("Valid Responses: %8d (%.1f%%)\n", s.ValidResponses, percent(s.ValidResponses, s.TotalResponses))

	if s.NoResponses > 0 {
		result += fmt.Sprintf("No Response:     %8d (%.1f%%)\n", s.NoResponses, percent(s.NoResponses, s.TotalResponses))
	}
	if s.InvalidSymbols > 0 {
		result += fmt.Sprintf("GCR Errors:      %8d (%.1f%%)\n", s.InvalidSymbols, percent(s.InvalidSymbols, s.TotalResponses))
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors, s.TotalResponses))
	}
	if s.ZeroPeriods > 0 {
		result += fmt.Sprintf("Zero Periods:    %8d (%.1f%%)\n", s.ZeroPeriods, percent(s.ZeroPeriods, s.TotalResponses))
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues, s.TotalResponses))
		if s.HighRPM > 0 {
			result += fmt.Sprintf("  High RPM:         %5d\n", s.HighRPM)
		}
		if s.RPMJumps > 0 {
			result += fmt.Sprintf("  RPM Jumps:        %5d\n", s.RPMJumps)
		}
		if s.Distrusted > 0 {
			result += fmt.Sprintf("  Distrusted:       %5d\n", s.Distrusted)
		}
	}

	result += fmt.Sprintf("\nResponse Rate: %.1f resp/sec\n", s.ResponseRate)
	result += fmt.Sprintf("Error Rate:    %.2f errors/sec\n", s.ErrorRate)

	return result
}

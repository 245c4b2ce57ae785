// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the bdshot JSON configuration file.
//
// Every field is optional. Omitted fields fall back to the defaults returned
// by the Get* accessors, so a partial file only overrides what it names.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
)

// PortConfig maps motors onto the pins of one GPIO port.
type PortConfig struct {
	Name   string  `json:"name"`
	Motors []int   `json:"motors"`
	Pins   []uint8 `json:"pins"`
}

// Config is the root configuration.
type Config struct {
	// Protocol
	BitRate          *int         `json:"bit_rate,omitempty"` // kbit/s
	Oversampling     *int         `json:"oversampling,omitempty"`
	PolesPerMotor    *int         `json:"poles_per_motor,omitempty"`
	TelemetryRateNum *int         `json:"telemetry_rate_num,omitempty"`
	TelemetryRateDen *int         `json:"telemetry_rate_den,omitempty"`
	ResponseGapUs    *int         `json:"response_gap_us,omitempty"`
	Policy           *string      `json:"policy,omitempty"` // "three-phase" or "sectioned"
	Ports            []PortConfig `json:"ports,omitempty"`

	// Notch bank
	Harmonics          *int     `json:"harmonics,omitempty"`
	NotchQ             *float64 `json:"notch_q,omitempty"`
	SampleRate         *float64 `json:"sample_rate,omitempty"` // Hz
	MinFrequency       *float64 `json:"min_frequency,omitempty"`
	FadeRange          *float64 `json:"fade_range,omitempty"`
	MaxFilterableRatio *float64 `json:"max_filterable_ratio,omitempty"`
	Realization        *string  `json:"realization,omitempty"` // "df1" or "df2t"

	// Validation limits
	MaxRPM     *uint32  `json:"max_rpm,omitempty"`
	MaxRPMJump *uint32  `json:"max_rpm_jump,omitempty"`
	MaxError   *float64 `json:"max_error,omitempty"`

	// MQTT telemetry (optional)
	MQTTBroker *string `json:"mqtt_broker,omitempty"`
	MQTTTopic  *string `json:"mqtt_topic,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set and the protocol and notch
// configurations they produce.
func (c *Config) Validate() error {
	if c.Policy != nil {
		if _, err := dshot.PolicyByName(*c.Policy); err != nil {
			return err
		}
	}
	if c.Realization != nil {
		if _, err := parseRealization(*c.Realization); err != nil {
			return err
		}
	}
	if c.MaxError != nil && *c.MaxError <= 0 {
		return fmt.Errorf("max_error must be positive, got %g", *c.MaxError)
	}
	if c.MQTTTopic != nil && strings.ContainsAny(*c.MQTTTopic, "#+") {
		return fmt.Errorf("mqtt_topic must not contain wildcards, got %q", *c.MQTTTopic)
	}

	dc, err := c.DShot()
	if err != nil {
		return err
	}
	if _, err := c.Bank(dc.MotorCount()); err != nil {
		return err
	}
	return nil
}

// DShot builds and validates the protocol engine configuration.
func (c *Config) DShot() (dshot.Config, error) {
	policy, err := dshot.PolicyByName(c.GetPolicy())
	if err != nil {
		return dshot.Config{}, err
	}

	dc := dshot.Config{
		BitRate:          c.GetBitRate(),
		Oversampling:     c.GetOversampling(),
		PolesPerMotor:    c.GetPolesPerMotor(),
		TelemetryRateNum: c.GetTelemetryRateNum(),
		TelemetryRateDen: c.GetTelemetryRateDen(),
		ResponseGapUs:    c.GetResponseGapUs(),
		Policy:           policy,
		Ports:            c.GetPorts(),
	}
	if err := dc.Validate(); err != nil {
		return dshot.Config{}, err
	}
	return dc, nil
}

// Bank builds and validates the notch bank configuration for the given
// number of motors.
func (c *Config) Bank(motors int) (filter.BankConfig, error) {
	r, err := parseRealization(c.GetRealization())
	if err != nil {
		return filter.BankConfig{}, err
	}

	bc := filter.BankConfig{
		Motors:             motors,
		Harmonics:          c.GetHarmonics(),
		Q:                  c.GetNotchQ(),
		SampleRate:         c.GetSampleRate(),
		MinFrequency:       c.GetMinFrequency(),
		FadeRange:          c.GetFadeRange(),
		MaxFilterableRatio: c.GetMaxFilterableRatio(),
		Realization:        r,
	}
	if err := bc.Validate(); err != nil {
		return filter.BankConfig{}, err
	}
	return bc, nil
}

// Limits returns the telemetry validation thresholds.
func (c *Config) Limits() dshot.Limits {
	l := dshot.DefaultLimits()
	if c.MaxRPM != nil {
		l.MaxRPM = *c.MaxRPM
	}
	if c.MaxRPMJump != nil {
		l.MaxRPMJump = *c.MaxRPMJump
	}
	if c.MaxError != nil {
		l.MaxError = *c.MaxError
	}
	return l
}

func parseRealization(name string) (filter.Realization, error) {
	switch strings.ToLower(name) {
	case "df1":
		return filter.DF1, nil
	case "df2t":
		return filter.DF2T, nil
	case "":
		return filter.DefaultBankConfig().Realization, nil
	}
	return 0, fmt.Errorf("unknown realization %q (use df1 or df2t)", name)
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetBitRate returns the bit_rate value or the default.
func (c *Config) GetBitRate() int {
	return getInt(c.BitRate, dshot.DefaultBitRate)
}

// GetOversampling returns the oversampling value or the default.
func (c *Config) GetOversampling() int {
	return getInt(c.Oversampling, dshot.DefaultOversampling)
}

// GetPolesPerMotor returns the poles_per_motor value or the default.
func (c *Config) GetPolesPerMotor() int {
	return getInt(c.PolesPerMotor, dshot.DefaultPolesPerMotor)
}

// GetTelemetryRateNum returns the telemetry_rate_num value or the default.
func (c *Config) GetTelemetryRateNum() int {
	return getInt(c.TelemetryRateNum, dshot.DefaultTelemetryRateNum)
}

// GetTelemetryRateDen returns the telemetry_rate_den value or the default.
func (c *Config) GetTelemetryRateDen() int {
	return getInt(c.TelemetryRateDen, dshot.DefaultTelemetryRateDen)
}

// GetResponseGapUs returns the response_gap_us value or the default.
func (c *Config) GetResponseGapUs() int {
	return getInt(c.ResponseGapUs, dshot.DefaultResponseGapUs)
}

// GetPolicy returns the policy name or the default.
func (c *Config) GetPolicy() string {
	if c.Policy == nil {
		return dshot.PolicyThreePhase.Name
	}
	return *c.Policy
}

// GetPorts returns the configured port map or the reference wiring.
func (c *Config) GetPorts() []dshot.Port {
	if len(c.Ports) == 0 {
		return dshot.DefaultPorts()
	}
	ports := make([]dshot.Port, len(c.Ports))
	for i, p := range c.Ports {
		name := p.Name
		if name == "" {
			name = string(rune('A' + i))
		}
		ports[i] = dshot.Port{
			Name:   name,
			Motors: append([]int(nil), p.Motors...),
			Pins:   append([]uint8(nil), p.Pins...),
		}
	}
	return ports
}

// GetHarmonics returns the harmonics value or the default.
func (c *Config) GetHarmonics() int {
	return getInt(c.Harmonics, filter.DefaultBankConfig().Harmonics)
}

// GetNotchQ returns the notch_q value or the default.
func (c *Config) GetNotchQ() float64 {
	return getFloat(c.NotchQ, filter.DefaultBankConfig().Q)
}

// GetSampleRate returns the sample_rate value or the default.
func (c *Config) GetSampleRate() float64 {
	return getFloat(c.SampleRate, filter.DefaultBankConfig().SampleRate)
}

// GetMinFrequency returns the min_frequency value or the default.
func (c *Config) GetMinFrequency() float64 {
	return getFloat(c.MinFrequency, filter.DefaultBankConfig().MinFrequency)
}

// GetFadeRange returns the fade_range value or the default.
func (c *Config) GetFadeRange() float64 {
	return getFloat(c.FadeRange, filter.DefaultBankConfig().FadeRange)
}

// GetMaxFilterableRatio returns the max_filterable_ratio value or the default.
func (c *Config) GetMaxFilterableRatio() float64 {
	return getFloat(c.MaxFilterableRatio, filter.DefaultBankConfig().MaxFilterableRatio)
}

// GetRealization returns the realization name or the default.
func (c *Config) GetRealization() string {
	if c.Realization == nil {
		return strings.ToLower(filter.DefaultBankConfig().Realization.String())
	}
	return *c.Realization
}

// GetMQTTBroker returns the broker URL, empty when publishing is disabled.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *Config) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "bdshot/motors"
	}
	return *c.MQTTTopic
}

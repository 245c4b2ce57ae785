// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
)

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// ============================================================
// Defaults
// ============================================================

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	dc, err := cfg.DShot()
	require.NoError(t, err)
	want := dshot.DefaultConfig()
	if diff := cmp.Diff(want, dc); diff != "" {
		t.Errorf("DShot() mismatch (-want +got):\n%s", diff)
	}

	bc, err := cfg.Bank(dc.MotorCount())
	require.NoError(t, err)
	assert.Equal(t, filter.DefaultBankConfig(), bc)
	assert.Equal(t, filter.DF2T, bc.Realization)
	assert.Equal(t, "df2t", cfg.GetRealization())

	assert.Equal(t, dshot.DefaultLimits(), cfg.Limits())
	assert.Empty(t, cfg.GetMQTTBroker())
	assert.Equal(t, "bdshot/motors", cfg.GetMQTTTopic())
}

// ============================================================
// Loading
// ============================================================

func TestLoad(t *testing.T) {
	path := writeConfig(t, "bdshot.json", `{
  "bit_rate": 600,
  "policy": "sectioned",
  "poles_per_motor": 12,
  "ports": [
    {"name": "C", "motors": [0, 1], "pins": [6, 7]}
  ],
  "harmonics": 2,
  "realization": "df2t",
  "max_rpm": 40000,
  "mqtt_broker": "tcp://localhost:1883"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	dc, err := cfg.DShot()
	require.NoError(t, err)
	assert.Equal(t, dshot.DShot600, dc.BitRate)
	assert.Equal(t, 12, dc.PolesPerMotor)
	assert.Equal(t, dshot.PolicySectioned.Name, dc.Policy.Name)
	assert.Equal(t, dshot.DefaultOversampling, dc.Oversampling, "unset fields keep defaults")
	require.Len(t, dc.Ports, 1)
	assert.Equal(t, "C", dc.Ports[0].Name)
	assert.Equal(t, []uint8{6, 7}, dc.Ports[0].Pins)

	bc, err := cfg.Bank(dc.MotorCount())
	require.NoError(t, err)
	assert.Equal(t, 2, bc.Motors)
	assert.Equal(t, 2, bc.Harmonics)
	assert.Equal(t, filter.DF2T, bc.Realization)

	assert.Equal(t, uint32(40000), cfg.Limits().MaxRPM)
	assert.Equal(t, "tcp://localhost:1883", cfg.GetMQTTBroker())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "bdshot.yaml", `{}`},
		{"bad json", "bdshot.json", `{"bit_rate": "fast"`},
		{"bad bit rate", "bdshot.json", `{"bit_rate": 500}`},
		{"bad policy", "bdshot.json", `{"policy": "v3"}`},
		{"bad realization", "bdshot.json", `{"realization": "df3"}`},
		{"odd poles", "bdshot.json", `{"poles_per_motor": 13}`},
		{"ratio too high", "bdshot.json", `{"max_filterable_ratio": 0.6}`},
		{"pins mismatch", "bdshot.json", `{"ports": [{"motors": [0, 1], "pins": [1]}]}`},
		{"mqtt wildcard", "bdshot.json", `{"mqtt_topic": "bdshot/#"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/path/to/bdshot.json")
	assert.Error(t, err)
}

// ============================================================
// Accessors
// ============================================================

func TestGetters(t *testing.T) {
	cfg := &Config{
		Oversampling:     ptrInt(4),
		TelemetryRateNum: ptrInt(5),
		TelemetryRateDen: ptrInt(4),
		NotchQ:           ptrFloat64(300),
		SampleRate:       ptrFloat64(1000),
		Realization:      ptrString("DF1"),
		MQTTTopic:        ptrString(""),
	}
	require.NoError(t, cfg.Validate())

	dc, err := cfg.DShot()
	require.NoError(t, err)
	assert.Equal(t, 4, dc.Oversampling)
	assert.Equal(t, 375, dc.ResponseBitRate())

	bc, err := cfg.Bank(4)
	require.NoError(t, err)
	assert.Equal(t, 300.0, bc.Q)
	assert.Equal(t, 1000.0, bc.SampleRate)
	assert.Equal(t, filter.DF1, bc.Realization)
	assert.Equal(t, "bdshot/motors", cfg.GetMQTTTopic(), "empty topic falls back")
}

func TestGetPorts_DefaultNames(t *testing.T) {
	cfg := &Config{Ports: []PortConfig{
		{Motors: []int{0}, Pins: []uint8{1}},
		{Motors: []int{1}, Pins: []uint8{2}},
	}}
	ports := cfg.GetPorts()
	require.Len(t, ports, 2)
	assert.Equal(t, "A", ports[0].Name)
	assert.Equal(t, "B", ports[1].Name)
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/bdshot/pkg/bridge"
	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
	"github.com/Thermoquad/bdshot/pkg/rig"
)

func newTestBench(t *testing.T) benchModel {
	t.Helper()
	r, err := rig.New(dshot.DefaultConfig(), filter.DefaultBankConfig(), dshot.DefaultLimits(), rig.DefaultOptions())
	require.NoError(t, err)
	return initialBenchModel(r, "test")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m benchModel, keys ...string) (benchModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(benchModel)
	}
	return m, cmd
}

// ============================================================
// Helpers
// ============================================================

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{59000, "59 seconds"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.ms), "ms=%d", tt.ms)
	}
}

func TestEventLog(t *testing.T) {
	l := newEventLog(3)
	_, ok := l.last()
	assert.False(t, ok)
	assert.Contains(t, l.render(newTUIStyles(), 5, "15:04"), "no events yet")

	for i := 0; i < 5; i++ {
		l.add(fmt.Sprintf("event %d", i), i%2 == 1)
	}
	require.Len(t, l.entries, 3)
	assert.Equal(t, "event 2", l.entries[0].text)

	last, ok := l.last()
	require.True(t, ok)
	assert.Equal(t, "event 4", last.text)
	assert.False(t, last.failed)

	out := l.render(newTUIStyles(), 2, "15:04")
	assert.NotContains(t, out, "event 2")
	assert.Contains(t, out, "event 3")
	assert.Contains(t, out, "event 4")
}

func TestAxisName(t *testing.T) {
	assert.Equal(t, "roll", axisName(0))
	assert.Equal(t, "pitch", axisName(1))
	assert.Equal(t, "yaw", axisName(2))
	assert.Equal(t, "axis3", axisName(3))
}

func TestToDB(t *testing.T) {
	assert.InDelta(t, 0, toDB(1), 1e-12)
	assert.InDelta(t, -20, toDB(0.1), 1e-9)
	assert.InDelta(t, -120, toDB(0), 1e-9)
}

func TestMotorGain_Bypassed(t *testing.T) {
	bank, err := filter.NewNotchBank(filter.DefaultBankConfig())
	require.NoError(t, err)
	bank.Update(fixedRPM{0, 0, 0, 0})
	assert.InDelta(t, 1, motorGain(bank, 0, 100), 1e-9)
}

func TestHasValidResponse(t *testing.T) {
	cfg := dshot.DefaultConfig()
	port := cfg.Ports[0]
	frames := make([]dshot.Frame, len(port.Pins))
	samples := make([]uint32, cfg.CaptureLength())

	// Idle line: no start bit on any pin
	for i := range samples {
		samples[i] = 0xFFFFFFFF
	}
	rec := bridge.NewRecord(0, 1, port, frames, samples)
	assert.False(t, hasValidResponse(rec, dshot.NewCaptureDecoder(cfg)))
}

// ============================================================
// Bench model
// ============================================================

func TestBench_Initial(t *testing.T) {
	m := newTestBench(t)
	assert.Len(t, m.motorList.Items(), 4)
	assert.Equal(t, 45, m.cyclesPer)
	assert.Equal(t, focusMotorList, m.focusedField)
}

func TestBench_ApplyThrottle(t *testing.T) {
	m := newTestBench(t)

	m.throttleInput.SetValue("3200")
	m.applyThrottle(false)
	assert.Equal(t, []uint16{3200, 0, 0, 0}, m.rig.Throttle())

	// Placeholder applies when the input is empty
	m.throttleInput.SetValue("")
	m.applyThrottle(true)
	assert.Equal(t, []uint16{3000, 3000, 3000, 3000}, m.rig.Throttle())
	last, ok := m.events.last()
	require.True(t, ok)
	assert.False(t, last.failed)
}

func TestBench_ApplyThrottle_Invalid(t *testing.T) {
	for _, v := range []string{"1500", "4001", "abc", "-1"} {
		m := newTestBench(t)
		m.throttleInput.SetValue(v)
		m.applyThrottle(true)
		assert.Equal(t, []uint16{0, 0, 0, 0}, m.rig.Throttle(), "value %q", v)
		last, ok := m.events.last()
		require.True(t, ok, "value %q", v)
		assert.True(t, last.failed, "value %q", v)
	}
}

func TestBench_Nudge(t *testing.T) {
	m := newTestBench(t)

	m, _ = press(t, m, "+")
	assert.Equal(t, uint16(minRawThrottle), m.rig.Throttle()[0])

	m, _ = press(t, m, "+", "+")
	assert.Equal(t, uint16(minRawThrottle+200), m.rig.Throttle()[0])

	m, _ = press(t, m, "-", "-", "-")
	assert.Equal(t, uint16(0), m.rig.Throttle()[0])

	require.NoError(t, m.rig.SetThrottle(0, maxRawThrottle))
	m, _ = press(t, m, "+")
	assert.Equal(t, uint16(maxRawThrottle), m.rig.Throttle()[0])
}

func TestBench_Keys(t *testing.T) {
	m := newTestBench(t)

	m, _ = press(t, m, "d", "c")
	assert.True(t, m.dropping)
	assert.True(t, m.corrupting)
	m, _ = press(t, m, "d")
	assert.False(t, m.dropping)

	m, _ = press(t, m, "tab")
	assert.Equal(t, focusThrottleInput, m.focusedField)
	assert.True(t, m.throttleInput.Focused())

	// q is text while the input has focus
	m, _ = press(t, m, "q")
	assert.False(t, m.quitting)
	assert.Equal(t, "q", m.throttleInput.Value())

	m, _ = press(t, m, "tab", "tab")
	assert.Equal(t, focusMotorList, m.focusedField)
	assert.False(t, m.throttleInput.Focused())

	m, cmd := press(t, m, "q")
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestBench_TickAndPause(t *testing.T) {
	m := newTestBench(t)
	m.rig.SetAllThrottle(3000)

	next, cmd := m.Update(benchTickMsg{})
	m = next.(benchModel)
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(m.cyclesPer), m.rig.Engine().Cycles())
	assert.Equal(t, m.cyclesPer, m.report.Samples)

	m, _ = press(t, m, " ")
	assert.True(t, m.paused)
	next, _ = m.Update(benchTickMsg{})
	m = next.(benchModel)
	assert.Equal(t, uint64(m.cyclesPer), m.rig.Engine().Cycles())

	assert.NotEmpty(t, m.View())
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
	"github.com/Thermoquad/bdshot/pkg/rig"
)

const (
	benchTickInterval = 50 * time.Millisecond
	benchThrottleStep = 100
	benchDropRate     = 0.05
	benchCorruptRate  = 0.02
	minRawThrottle    = 2000
	maxRawThrottle    = 4000
)

// Focus order
const (
	focusMotorList = iota
	focusThrottleInput
	focusButton
	focusCount
)

// motorItem is one row of the motor list.
type motorItem struct {
	index    int
	throttle uint16
	rpm      uint32
	errScore float64
}

func (i motorItem) Title() string { return fmt.Sprintf("Motor %d", i.index) }
func (i motorItem) Description() string {
	return fmt.Sprintf("%5d RPM  thr %d  err %.0f", i.rpm, i.throttle, i.errScore)
}
func (i motorItem) FilterValue() string { return strconv.Itoa(i.index) }

// benchModel drives a rig from the keyboard. The rig is stepped from Update,
// so it is only ever touched by the Bubble Tea loop.
type benchModel struct {
	rig       *rig.Rig
	info      string
	cyclesPer int // engine cycles per tick

	motorList     list.Model
	throttleInput textinput.Model
	focusedField  int

	dropping   bool
	corrupting bool

	events       eventLog
	styles       tuiStyles
	lastFailures uint64
	report       rig.Report
	started      time.Time

	width    int
	height   int
	paused   bool
	quitting bool
}

type benchTickMsg time.Time

func initialBenchModel(r *rig.Rig, info string) benchModel {
	ti := textinput.New()
	ti.Placeholder = "3000"
	ti.CharLimit = 4
	ti.Width = 10

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	motors := list.New(nil, delegate, 30, 12)
	motors.Title = "Motors"
	motors.SetShowStatusBar(false)
	motors.SetShowHelp(false)
	motors.SetFilteringEnabled(false)

	cycles := int(r.Bank().Config().SampleRate * benchTickInterval.Seconds())
	if cycles < 1 {
		cycles = 1
	}

	m := benchModel{
		rig:           r,
		info:          info,
		cyclesPer:     cycles,
		motorList:     motors,
		throttleInput: ti,
		focusedField:  focusMotorList,
		events:        newEventLog(100),
		styles:        newTUIStyles(),
		started:       time.Now(),
		width:         80,
		height:        24,
	}
	m.refreshMotors()
	return m
}

func (m benchModel) Init() tea.Cmd {
	return benchTickCmd()
}

func benchTickCmd() tea.Cmd {
	return tea.Tick(benchTickInterval, func(t time.Time) tea.Msg {
		return benchTickMsg(t)
	})
}

func (m benchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		rows := m.height / 3
		if rows < 5 {
			rows = 5
		}
		m.motorList.SetSize(28, rows)

	case benchTickMsg:
		if !m.paused {
			m.step()
		}
		return m, benchTickCmd()
	}
	return m, nil
}

func (m benchModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.cycleFocus(1)
		return m, nil
	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil
	}

	// Everything else is typing while the input has focus
	if m.focusedField == focusThrottleInput {
		if k == "enter" {
			m.applyThrottle(false)
			return m, nil
		}
		var cmd tea.Cmd
		m.throttleInput, cmd = m.throttleInput.Update(msg)
		return m, cmd
	}

	switch k {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		if m.focusedField == focusButton {
			m.applyThrottle(false)
		}
	case "a":
		m.applyThrottle(true)
	case "+", "=":
		m.nudgeThrottle(benchThrottleStep)
	case "-":
		m.nudgeThrottle(-benchThrottleStep)
	case "d":
		m.dropping = !m.dropping
		m.updateLink()
	case "c":
		m.corrupting = !m.corrupting
		m.updateLink()
	case " ":
		m.paused = !m.paused
		if m.paused {
			m.events.add("Paused", false)
		} else {
			m.events.add("Resumed", false)
		}
	case "up", "k", "down", "j":
		if m.focusedField == focusMotorList {
			m.motorList, _ = m.motorList.Update(msg)
		}
	}
	return m, nil
}

func (m *benchModel) cycleFocus(delta int) {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount
	if m.focusedField == focusThrottleInput {
		m.throttleInput.Focus()
	} else {
		m.throttleInput.Blur()
	}
}

//////////////////////////////////////////////////////////////
// Simulation
//////////////////////////////////////////////////////////////

// step runs one tick worth of engine cycles.
func (m *benchModel) step() {
	for i := 0; i < m.cyclesPer; i++ {
		c := m.rig.Step()
		for _, anomalies := range c.Anomalies {
			for _, a := range anomalies {
				m.events.add(a.Message, true)
			}
		}
	}

	// At full rate individual decode failures would flood the log
	failures := m.rig.Stats().Failures()
	if n := failures - m.lastFailures; n > 0 {
		m.events.add(fmt.Sprintf("%d responses failed to decode", n), true)
	}
	m.lastFailures = failures

	m.report = m.rig.Report()
	m.refreshMotors()
}

func (m *benchModel) applyThrottle(all bool) {
	text := m.throttleInput.Value()
	if text == "" {
		text = m.throttleInput.Placeholder
	}

	v, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		m.events.add(fmt.Sprintf("Invalid throttle value: %s", text), true)
		return
	}
	if v != 0 && (v < minRawThrottle || v > maxRawThrottle) {
		m.events.add(fmt.Sprintf("Throttle must be 0 or between %d and %d", minRawThrottle, maxRawThrottle), true)
		return
	}

	if all {
		m.rig.SetAllThrottle(uint16(v))
		m.events.add(fmt.Sprintf("All motors: throttle %d", v), false)
	} else {
		motor := m.motorList.Index()
		if err := m.rig.SetThrottle(motor, uint16(v)); err != nil {
			m.events.add(err.Error(), true)
			return
		}
		m.events.add(fmt.Sprintf("Motor %d: throttle %d", motor, v), false)
	}
	m.refreshMotors()
}

// nudgeThrottle steps the selected motor, arming at the bottom of the range
// and disarming below it.
func (m *benchModel) nudgeThrottle(delta int) {
	motor := m.motorList.Index()
	v := int(m.rig.Throttle()[motor]) + delta
	switch {
	case v < minRawThrottle && delta < 0:
		v = 0
	case v < minRawThrottle:
		v = minRawThrottle
	case v > maxRawThrottle:
		v = maxRawThrottle
	}
	if err := m.rig.SetThrottle(motor, uint16(v)); err != nil {
		m.events.add(err.Error(), true)
		return
	}
	m.refreshMotors()
}

func (m *benchModel) updateLink() {
	var drop, corrupt float64
	if m.dropping {
		drop = benchDropRate
	}
	if m.corrupting {
		corrupt = benchCorruptRate
	}
	m.rig.Bench().SetLink(drop, corrupt)
	m.events.add(fmt.Sprintf("Link: drop %.0f%%, corrupt %.0f%%", drop*100, corrupt*100), false)
}

func (m *benchModel) refreshMotors() {
	throttle := m.rig.Throttle()
	tracker := m.rig.Tracker()
	items := make([]list.Item, len(throttle))
	for i := range throttle {
		items[i] = motorItem{
			index:    i,
			throttle: throttle[i],
			rpm:      tracker.RPM(i),
			errScore: tracker.Error(i),
		}
	}
	m.motorList.SetItems(items)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m benchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	var s strings.Builder
	s.WriteString(st.title.Render("BDSHOT BENCH"))
	s.WriteString(" ")
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | cycle %d | q=quit Tab=switch", m.info, m.rig.Engine().Cycles())))
	if m.paused {
		s.WriteString(" ")
		s.WriteString(st.warn.Render("PAUSED"))
	}
	s.WriteString("\n\n")

	const listWidth = 30
	panelWidth := m.width - listWidth - 6
	if panelWidth < 30 {
		panelWidth = 30
	}
	listBox := st.box
	if m.focusedField == focusMotorList {
		listBox = listBox.BorderForeground(lipgloss.Color("12"))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		listBox.Width(listWidth).Render(m.motorList.View()),
		" ",
		st.box.Width(panelWidth).Render(m.renderControlPanel())))
	s.WriteString("\n\n")

	wide := st.box.Width(m.width - 4)
	s.WriteString(wide.Render(m.renderStatistics()))
	s.WriteString("\n\n")
	s.WriteString(wide.Render(m.renderNoise()))
	s.WriteString("\n\n")
	s.WriteString(wide.Render(st.label.Render("EVENTS") + "\n" + m.events.render(st, 8, "15:04:05.000")))

	return s.String()
}

func (m benchModel) renderControlPanel() string {
	st := m.styles
	motor := m.motorList.Index()
	tracker := m.rig.Tracker()
	throttle := m.rig.Throttle()[motor]

	var b strings.Builder
	fmt.Fprintf(&b, "%s Motor %d\n", st.label.Render("Selected:"), motor)
	fmt.Fprintf(&b, "%s %d (frame value %d)\n", st.label.Render("Throttle:"), throttle, dshot.EncodeThrottle(throttle).Value())
	fmt.Fprintf(&b, "%s %s  %s %.0f  %s %.1f\n",
		st.label.Render("RPM:"), st.value.Render(fmt.Sprintf("%d", tracker.RPM(motor))),
		st.label.Render("True:"), m.rig.Bench().Motor(motor).RPM,
		st.label.Render("Error:"), tracker.Error(motor))

	bank := m.rig.Bank()
	b.WriteString(st.label.Render("Notches:"))
	for h := 0; h < bank.Config().Harmonics; h++ {
		f, w := bank.Stage(0, motor, h)
		style := st.value
		if w == 0 {
			style = st.header
		}
		b.WriteString(style.Render(fmt.Sprintf(" %.1fHz x%.2f", f.Frequency, w)))
	}
	b.WriteString("\n\n")

	b.WriteString(st.label.Render("New throttle: "))
	if m.focusedField == focusThrottleInput {
		b.WriteString(m.throttleInput.View())
	} else {
		val := m.throttleInput.Value()
		if val == "" {
			val = m.throttleInput.Placeholder
		}
		fmt.Fprintf(&b, "[%s]", val)
	}
	b.WriteString("\n\n")

	button := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Padding(0, 2)
	if m.focusedField == focusButton {
		button = button.Background(lipgloss.Color("10"))
	}
	b.WriteString(button.Render("[ Apply ]"))

	var faults []string
	if m.dropping {
		faults = append(faults, fmt.Sprintf("dropping %.0f%%", benchDropRate*100))
	}
	if m.corrupting {
		faults = append(faults, fmt.Sprintf("corrupting %.0f%%", benchCorruptRate*100))
	}
	if len(faults) > 0 {
		b.WriteString("  ")
		b.WriteString(st.warn.Render(strings.Join(faults, ", ")))
	}
	return b.String()
}

func (m benchModel) renderStatistics() string {
	st := m.styles
	stats := m.rig.Stats()
	stats.CalculateRates()

	var validPct, failPct float64
	if stats.TotalResponses > 0 {
		validPct = float64(stats.ValidResponses) * 100 / float64(stats.TotalResponses)
		failPct = float64(stats.Failures()) * 100 / float64(stats.TotalResponses)
	}
	failStyle := st.value
	if failPct > 0 {
		failStyle = st.err
	}

	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		st.label.Render("Total:"), st.value.Render(fmt.Sprintf("%d", stats.TotalResponses)),
		st.label.Render("Valid:"), st.value.Render(fmt.Sprintf("%.1f%%", validPct)),
		st.label.Render("Failed:"), failStyle.Render(fmt.Sprintf("%.1f%%", failPct)),
		st.label.Render("Rate:"), st.value.Render(fmt.Sprintf("%.0f resp/s", stats.ResponseRate)),
		st.label.Render("Up:"), st.value.Render(formatUptime(uint64(time.Since(m.started).Milliseconds()))))
}

func (m benchModel) renderNoise() string {
	st := m.styles
	var b strings.Builder
	b.WriteString(st.label.Render("GYRO NOISE"))
	b.WriteString(" | ")

	if m.report.Samples == 0 {
		b.WriteString("No samples yet")
		return b.String()
	}
	for axis := 0; axis < filter.Axes; axis++ {
		fmt.Fprintf(&b, "%s %s  ",
			st.label.Render(axisName(axis)+":"),
			st.value.Render(fmt.Sprintf("%.2f -> %.2f (%+.1f dB)",
				m.report.RawRMS[axis], m.report.FilteredRMS[axis], m.report.AttenuationDB[axis])))
	}
	fmt.Fprintf(&b, "%s %s", st.label.Render("Tracking:"), st.value.Render(fmt.Sprintf("%.1f RPM", m.report.RPMError)))
	return b.String()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/bdshot/pkg/bridge"
	"github.com/Thermoquad/bdshot/pkg/dshot"
)

// monitorModel shows link health, response statistics and the latest
// response of every motor.
type monitorModel struct {
	connInfo string
	showAll  bool
	analyzer *recordAnalyzer
	events   eventLog
	styles   tuiStyles

	synchronized bool
	invalidBytes int
	closed       bool

	records   uint64
	lastCycle uint64
	latest    map[int]dshot.Response

	width    int
	height   int
	quitting bool
}

// Messages
type tickMsg time.Time
type linkDataMsg struct {
	packet    *bridge.Packet
	decodeErr error
}
type syncMsg struct {
	invalidBytes int
}
type linkClosedMsg struct {
	err error
}

func initialMonitorModel(connInfo string, showAll bool, analyzer *recordAnalyzer) monitorModel {
	return monitorModel{
		connInfo: connInfo,
		showAll:  showAll,
		analyzer: analyzer,
		events:   newEventLog(100),
		styles:   newTUIStyles(),
		latest:   make(map[int]dshot.Response),
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "q" || k == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		m.analyzer.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		text := "Synchronized"
		if msg.invalidBytes > 0 {
			text = fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes)
		}
		m.events.add(text, false)

	case linkClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.events.add(fmt.Sprintf("Link closed: %v", msg.err), true)
		} else {
			m.events.add("Link closed", false)
		}

	case linkDataMsg:
		switch {
		case msg.decodeErr != nil:
			m.events.add(fmt.Sprintf("LINK ERROR: %v", msg.decodeErr), true)
		case msg.packet != nil:
			m.handleRecord(&msg.packet.Record)
		}
	}

	return m, nil
}

func (m *monitorModel) handleRecord(rec *bridge.Record) {
	m.records++
	m.lastCycle = rec.Cycle

	for _, ar := range m.analyzer.analyze(rec) {
		r := ar.response
		m.latest[r.Motor] = r

		switch {
		case r.Err != nil:
			m.events.add(fmt.Sprintf("Motor %d: %v", r.Motor, r.Err), true)
		case len(ar.validationErrors) > 0:
			for _, v := range ar.validationErrors {
				m.events.add(v.Message, true)
			}
		case m.showAll:
			m.events.add(fmt.Sprintf("Motor %d: %d RPM (valid)", r.Motor, r.State.RPM), false)
		}
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	mode := "Errors only"
	if m.showAll {
		mode = "All responses"
	}

	var s strings.Builder
	s.WriteString(st.title.Render("BDSHOT - TELEMETRY MONITOR"))
	s.WriteString("\n")
	s.WriteString(st.header.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	s.WriteString(m.renderLinkState())
	s.WriteString("\n\n")

	s.WriteString(st.box.Render(m.renderStats()))
	s.WriteString("\n\n")

	if len(m.latest) > 0 {
		s.WriteString(st.label.Render(fmt.Sprintf("Motors (%d records, cycle %d):", m.records, m.lastCycle)))
		s.WriteString("\n")
		s.WriteString(st.box.Render(m.renderMotors()))
		s.WriteString("\n\n")
	}

	// Whatever height the boxes above leave
	rows := m.height - 15
	if rows < 5 {
		rows = 5
	}
	s.WriteString(st.label.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(st.box.Width(m.width - 4).Render(m.events.render(st, rows, "01/02/06 15:04:05.000")))

	return s.String()
}

func (m monitorModel) renderLinkState() string {
	st := m.styles
	switch {
	case m.closed:
		return st.err.Render("✗ Link closed")
	case !m.synchronized:
		return st.warn.Render("⏳ Waiting for synchronization...")
	case m.invalidBytes > 0:
		return st.value.Render("✓ Synchronized") +
			st.header.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes))
	}
	return st.value.Render("✓ Synchronized")
}

func (m monitorModel) renderStats() string {
	st := m.styles
	stats := m.analyzer.stats
	stats.CalculateRates()

	failures := stats.Failures()
	problems := failures + stats.AnomalousValues
	var validPct, problemPct float64
	if stats.TotalResponses > 0 {
		validPct = float64(stats.ValidResponses) * 100 / float64(stats.TotalResponses)
		problemPct = float64(problems) * 100 / float64(stats.TotalResponses)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		st.label.Render("Total:"), st.value.Render(fmt.Sprintf("%d", stats.TotalResponses)),
		st.label.Render("Valid:"), st.value.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidResponses, validPct)),
		st.label.Render("Errors:"), st.err.Render(fmt.Sprintf("%d (%.1f%%)", problems, problemPct)))

	if failures > 0 {
		fmt.Fprintf(&b, "%s %s (%s: %d, %s: %d, %s: %d)\n",
			st.label.Render("Decode Failures:"), st.err.Render(fmt.Sprintf("%d", failures)),
			st.header.Render("no response"), stats.NoResponses,
			st.header.Render("GCR"), stats.InvalidSymbols,
			st.header.Render("checksum"), stats.ChecksumErrors+stats.ZeroPeriods)
	}
	if stats.AnomalousValues > 0 {
		fmt.Fprintf(&b, "%s %s (%s: %d, %s: %d, %s: %d)\n",
			st.label.Render("Anomalous:"), st.warn.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			st.header.Render("high RPM"), stats.HighRPM,
			st.header.Render("jumps"), stats.RPMJumps,
			st.header.Render("distrusted"), stats.Distrusted)
	}

	errRate := st.value
	if stats.ErrorRate > 0 {
		errRate = st.err
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s",
		st.label.Render("Response Rate:"), st.value.Render(fmt.Sprintf("%.1f resp/s", stats.ResponseRate)),
		st.label.Render("Error Rate:"), errRate.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate)),
		st.label.Render("Up:"), st.value.Render(formatUptime(uint64(time.Since(stats.StartTime).Milliseconds()))))
	return b.String()
}

func (m monitorModel) renderMotors() string {
	st := m.styles
	var b strings.Builder
	for motor := 0; motor < m.analyzer.tracker.MotorCount(); motor++ {
		r, ok := m.latest[motor]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s %s error %5.1f ",
			st.label.Render(fmt.Sprintf("Motor %d:", motor)),
			st.value.Render(fmt.Sprintf("%6d RPM", r.State.RPM)),
			r.State.Error)
		if r.Err != nil {
			b.WriteString(st.err.Render(r.Err.Error()))
		} else {
			fmt.Fprintf(&b, "period %dus", r.Telemetry.PeriodMicros())
		}
		b.WriteString("\n")
	}
	return b.String()
}

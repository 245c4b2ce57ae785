// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// tuiStyles is the palette shared by the monitor and bench screens.
type tuiStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	box    lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		value:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// logEvent is one line of the event log.
type logEvent struct {
	at     time.Time
	text   string
	failed bool
}

// eventLog keeps the most recent events, oldest first.
type eventLog struct {
	entries []logEvent
	limit   int
}

func newEventLog(limit int) eventLog {
	return eventLog{limit: limit}
}

func (l *eventLog) add(text string, failed bool) {
	l.entries = append(l.entries, logEvent{at: time.Now(), text: text, failed: failed})
	if len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
}

func (l eventLog) last() (logEvent, bool) {
	if len(l.entries) == 0 {
		return logEvent{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// render draws the last rows events with timestamps in layout.
func (l eventLog) render(st tuiStyles, rows int, layout string) string {
	if len(l.entries) == 0 {
		return st.header.Render("  (no events yet)")
	}

	first := len(l.entries) - rows
	if first < 0 {
		first = 0
	}
	var b strings.Builder
	for _, e := range l.entries[first:] {
		text := st.warn.Render("ℹ " + e.text)
		if e.failed {
			text = st.err.Render("✗ " + e.text)
		}
		fmt.Fprintf(&b, "%s %s\n", st.header.Render(e.at.Format(layout)), text)
	}
	return b.String()
}

var uptimeUnits = []struct {
	name string
	ms   uint64
}{
	{"day", 24 * 60 * 60 * 1000},
	{"hour", 60 * 60 * 1000},
	{"minute", 60 * 1000},
	{"second", 1000},
}

// formatUptime spells out an elapsed time in milliseconds, largest unit first.
func formatUptime(ms uint64) string {
	var parts []string
	for _, u := range uptimeUnits {
		n := ms / u.ms
		ms %= u.ms
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

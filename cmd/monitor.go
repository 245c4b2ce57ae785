// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/bridge"
	"github.com/Thermoquad/bdshot/pkg/dshot"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Detect and analyze telemetry errors on a bridge link",
	Long: `Track telemetry decode failures and anomalous values with statistics.

Every capture record is decoded on the host and each motor response is
checked for:
  - Missing responses (the ESC never pulled the line low)
  - Invalid GCR symbols and checksum failures
  - Anomalous values (RPM above the limit, implausible RPM jumps)
  - Motors whose error score says the readings cannot be trusted

By default, only errors are displayed. Use --show-all to display valid
responses too.

Limits come from the configuration file (max_rpm, max_rpm_jump, max_error).`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all responses (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// recordAnalyzer decodes records and keeps the host-side motor state.
type recordAnalyzer struct {
	decoder   *dshot.CaptureDecoder
	tracker   *dshot.Tracker
	validator *dshot.Validator
	stats     *dshot.Statistics
}

func newRecordAnalyzer(dc dshot.Config, limits dshot.Limits) *recordAnalyzer {
	return &recordAnalyzer{
		decoder:   dshot.NewCaptureDecoder(dc),
		tracker:   dshot.NewTracker(dc.MotorCount(), dc.PolesPerMotor),
		validator: dshot.NewValidator(limits),
		stats:     dshot.NewStatistics(),
	}
}

// analyzedResponse is a decoded response and its anomalies.
type analyzedResponse struct {
	response         dshot.Response
	validationErrors []dshot.ValidationError
}

func (a *recordAnalyzer) analyze(r *bridge.Record) []analyzedResponse {
	var out []analyzedResponse
	for _, resp := range r.Decode(a.decoder) {
		if resp.Motor >= a.tracker.MotorCount() {
			continue
		}
		resp.State = a.tracker.Observe(resp.Motor, resp.Telemetry, resp.Err)
		validationErrors := a.validator.Validate(resp)
		a.stats.Update(resp, validationErrors)
		out = append(out, analyzedResponse{response: resp, validationErrors: validationErrors})
	}
	return out
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc, err := cfg.DShot()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	analyzer := newRecordAnalyzer(dc, cfg.Limits())
	if useTUI {
		return runTUIMode(conn, connInfo, analyzer)
	}
	return runTextMode(conn, connInfo, analyzer)
}

// printLinkError prints a link decode error in highlighted format
func printLinkError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mLINK ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> RECORD DROPPED <<<\n\n")
}

// printResponseErrors prints a failed decode or the anomalies of a response
func printResponseErrors(packet *bridge.Packet, ar analyzedResponse) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	r := ar.response

	if r.Err != nil {
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m motor %d (port %d, cycle %d)\n",
			timestamp, r.Motor, packet.Record.Port, packet.Record.Cycle)
		fmt.Printf("  %v\n", r.Err)
		if r.Raw != dshot.NoResponse {
			fmt.Printf("  raw=0x%06X\n", r.Raw)
		}
		fmt.Printf("  error score: %.1f\n\n", r.State.Error)
		return
	}

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m motor %d (port %d, cycle %d)\n",
		timestamp, r.Motor, packet.Record.Port, packet.Record.Cycle)
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range ar.validationErrors {
		switch err.Type {
		case dshot.AnomalyHighRPM:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case dshot.AnomalyRPMJump:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if from, ok := err.Details["from"].(uint32); ok {
				fmt.Printf("    from=%d, to=%d\n", from, r.State.RPM)
			}

		case dshot.AnomalyDistrusted:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Printf("  period=%dus rpm=%d\n", r.Telemetry.PeriodMicros(), r.State.RPM)
	fmt.Printf("  >>> RESPONSE FLAGGED <<<\n\n")
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(conn Link, connInfo string, analyzer *recordAnalyzer) error {
	m := initialMonitorModel(connInfo, showAll, analyzer)
	p := tea.NewProgram(m)

	go func() {
		err := readLink(conn, func(ev linkEvent) {
			switch {
			case ev.sync:
				p.Send(syncMsg{invalidBytes: ev.skipped})
			case ev.err != nil:
				p.Send(linkDataMsg{decodeErr: ev.err})
			case ev.packet != nil:
				p.Send(linkDataMsg{packet: ev.packet})
			}
		})
		p.Send(linkClosedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(conn Link, connInfo string, analyzer *recordAnalyzer) error {
	fmt.Printf("bdshot - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All responses\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	events := make(chan linkEvent, 64)
	done := make(chan error, 1)
	go func() {
		done <- readLink(conn, func(ev linkEvent) { events <- ev })
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	printStats := func() {
		analyzer.stats.CalculateRates()
		fmt.Println()
		fmt.Print(analyzer.stats.String())
		fmt.Println()
	}

	handle := func(ev linkEvent) {
		switch {
		case ev.sync:
			if ev.skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", ev.skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}

		case ev.err != nil:
			printLinkError(ev.err)

		case ev.packet != nil:
			for _, ar := range analyzer.analyze(&ev.packet.Record) {
				if ar.response.Err != nil || len(ar.validationErrors) > 0 {
					printResponseErrors(ev.packet, ar)
				} else if showAll {
					fmt.Println(dshot.FormatResponse(ar.response))
				}
			}
		}
	}

	for {
		select {
		case ev := <-events:
			handle(ev)

		case err := <-done:
			// Drain what the reader queued before it stopped
			for len(events) > 0 {
				handle(<-events)
			}
			printStats()
			return err

		case <-statsTicker.C:
			printStats()
		}
	}
}

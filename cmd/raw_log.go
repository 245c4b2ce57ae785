// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display bridge capture records in human-readable format",
	Long: `Continuously decode and display capture records as they arrive.

Each record is printed with its port, cycle, the frames that were sent and
the telemetry decoded from the raw capture samples.

Supports serial, WebSocket and recorded file connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc, err := cfg.DShot()
	if err != nil {
		return err
	}

	// Open connection (serial, WebSocket or file)
	conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("bdshot - Raw Capture Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := dshot.NewCaptureDecoder(dc)

	return readLink(conn, func(ev linkEvent) {
		switch {
		case ev.err != nil:
			fmt.Printf("[ERROR] %v\n", ev.err)
		case ev.packet != nil:
			r := ev.packet.Record
			fmt.Printf("[%s] port=%d cycle=%d samples=%d\n",
				ev.packet.Timestamp().Format("15:04:05.000"), r.Port, r.Cycle, len(r.Samples))
			for i, resp := range r.Decode(decoder) {
				fmt.Printf("  motor %d pin %d: %s\n", resp.Motor, r.Pins[i], dshot.FormatFrame(dshot.Frame(r.Frames[i])))
				fmt.Printf("    %s", dshot.FormatRaw(resp.Raw, dc.PolesPerMotor))
			}
			fmt.Println()
		}
	})
}

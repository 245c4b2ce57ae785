// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/bridge"
	"github.com/Thermoquad/bdshot/pkg/dshot"
)

var (
	probeTimeout  int
	probeResponse bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test a bridge link by waiting for a valid capture record",
	Long: `Wait for a valid capture record on the connection until timeout.

This command connects to a serial port, WebSocket or recorded file and waits
for any complete capture record (passing CRC check). Invalid bytes are
ignored.

With --response, the record must also carry at least one motor response that
decodes to valid telemetry. This confirms the ESCs answer, not only that the
bridge is streaming.

Exit codes:
  0 - Record received before timeout
  1 - Timeout reached without receiving a valid record
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a record")
	probeCmd.Flags().BoolVar(&probeResponse, "response", false, "Require a decodable motor response")
}

func runProbe(cmd *cobra.Command, args []string) error {
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
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("bdshot - Link Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid capture record...\n\n")

	decoder := dshot.NewCaptureDecoder(dc)

	// Channel for record reception
	packetChan := make(chan *bridge.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		found := false
		err := readLink(conn, func(ev linkEvent) {
			switch {
			case ev.sync:
				if ev.skipped > 0 {
					fmt.Printf("(skipped %d invalid bytes before sync)\n", ev.skipped)
				}
			case ev.packet != nil && !found:
				if probeResponse && !hasValidResponse(&ev.packet.Record, decoder) {
					return
				}
				found = true
				packetChan <- ev.packet
			}
		})
		if found {
			return
		}
		if err == nil {
			err = fmt.Errorf("connection closed before a record arrived")
		}
		errChan <- err
	}()

	// Wait for record or timeout
	select {
	case packet := <-packetChan:
		r := packet.Record
		fmt.Printf("SUCCESS: Received valid record\n")
		fmt.Printf("  Port: %d\n", r.Port)
		fmt.Printf("  Cycle: %d\n", r.Cycle)
		fmt.Printf("  Motors: %v\n", r.Motors)
		fmt.Printf("  Samples: %d\n", len(r.Samples))
		fmt.Printf("  Length: %d bytes\n", packet.Length())
		fmt.Printf("  CRC: 0x%04X\n", packet.CRC())
		for _, resp := range r.Decode(decoder) {
			fmt.Printf("  %s\n", dshot.FormatResponse(resp))
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid record received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}

func hasValidResponse(r *bridge.Record, d *dshot.CaptureDecoder) bool {
	for _, resp := range r.Decode(d) {
		if resp.Err == nil {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/Thermoquad/bdshot/pkg/bridge"
)

var (
	scanTimeout int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find serial ports that carry a bridge capture stream",
	Long: `List the serial ports on this machine and listen on each one for
capture records.

Every port is opened at --baud and read until a valid record arrives or the
per-port timeout expires. Ports that cannot be opened are reported and
skipped.

Examples:
  bdshot scan
  bdshot scan --baud 460800 --timeout 2

Exit codes:
  0 - At least one bridge found
  1 - No bridge found
  2 - Serial ports could not be listed`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 3, "Timeout in seconds per port")
}

// scanResult describes what was heard on one serial port.
type scanResult struct {
	port    string
	packet  *bridge.Packet
	skipped int
	err     error
}

func runScan(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("bdshot - Bridge Scan\n")
	fmt.Printf("Baud rate: %d\n", baudRate)
	fmt.Printf("Timeout: %d seconds per port\n\n", scanTimeout)

	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		os.Exit(1)
	}

	found := 0
	for _, name := range ports {
		fmt.Printf("%s: ", name)
		res := scanPort(name, time.Duration(scanTimeout)*time.Second)
		switch {
		case res.err != nil:
			fmt.Printf("%v\n", res.err)
		case res.packet == nil:
			fmt.Printf("no records\n")
		default:
			found++
			r := res.packet.Record
			fmt.Printf("bridge found (port %d, cycle %d, motors %v", r.Port, r.Cycle, r.Motors)
			if res.skipped > 0 {
				fmt.Printf(", skipped %d", res.skipped)
			}
			fmt.Printf(")\n")
		}
	}

	// Summary
	fmt.Printf("\n--- Scan summary ---\n")
	fmt.Printf("Ports scanned: %d\n", len(ports))
	fmt.Printf("Bridges found: %d\n", found)

	if found == 0 {
		os.Exit(1)
	}
	return nil
}

// scanPort listens on one serial port for the first valid record.
func scanPort(name string, timeout time.Duration) scanResult {
	conn, err := OpenSerialLink(name, baudRate)
	if err != nil {
		return scanResult{port: name, err: err}
	}

	resultChan := make(chan scanResult, 1)
	go func() {
		decoder := bridge.NewDecoder()
		buf := make([]byte, 128)
		skipped := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				resultChan <- scanResult{port: name, err: err}
				return
			}
			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					skipped++
					continue
				}
				if packet != nil {
					resultChan <- scanResult{port: name, packet: packet, skipped: skipped}
					return
				}
			}
		}
	}()

	var res scanResult
	select {
	case res = <-resultChan:
	case <-time.After(timeout):
		res = scanResult{port: name}
	}

	// Closing unblocks the reader
	if err := conn.Close(); err != nil {
		glog.Warningf("closing %s: %v", name, err)
	}
	return res
}

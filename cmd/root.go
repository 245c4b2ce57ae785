// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Recorded capture stream
	inputFile string

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "bdshot",
	Short: "Bidirectional DShot engine and RPM notch filter tools",
	Long: `bdshot - Tools for the bidirectional DShot protocol engine and the
RPM-adaptive notch filter bank.

Offline commands (encode, decode, simulate, bench, response) run the engine
against a simulated ESC bench. Link commands (raw_log, monitor, probe, scan)
decode capture records streamed by a flight controller bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 921600]
  WebSocket: --url ws://host/path [--username user]
  File:      --file capture.bin (written by simulate --record)

For WebSocket authentication, the password is read from the BDSHOT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Logging uses glog; pass -v=2 for per-cycle decode detail and
--logtostderr to see it on the terminal.`,
	Version: "0.3.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 921600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "Replay a recorded capture stream")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON configuration file")

	// glog registers its flags on the standard flag set
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// loadConfig returns the configuration file named by --config, or an empty
// configuration that yields the built-in defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Empty(), nil
	}
	return config.Load(configPath)
}

// Execute runs the root command
func Execute() error {
	defer glog.Flush()
	return rootCmd.Execute()
}

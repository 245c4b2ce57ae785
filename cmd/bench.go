// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/rig"
)

var (
	benchThrottle uint16
	benchNoise    float64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Interactive TUI driving the simulated ESC bench",
	Long: `Drive the simulated ESCs from an interactive terminal UI.

The engine, the simulated bench and the notch bank run live at the gyro
sample rate. Pick a motor in the list, type a raw throttle (2000-4000, 0 to
disarm) and apply it; the tracked RPM, error score, notch frequencies and the
gyro noise removed follow in real time.

Keys:
  Tab / Shift+Tab  switch between motor list, throttle input and button
  Enter            apply the throttle to the selected motor
  a                apply the throttle to every motor
  + / -            step the selected motor by 100
  d                toggle 5% dropped responses
  c                toggle 2% corrupted responses
  space            pause / resume
  q                quit`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().Uint16Var(&benchThrottle, "throttle", 0, "Initial raw throttle of every motor")
	benchCmd.Flags().Float64Var(&benchNoise, "noise", 20, "Motor noise amplitude at the fundamental (deg/s)")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc, err := cfg.DShot()
	if err != nil {
		return err
	}
	bank, err := cfg.Bank(dc.MotorCount())
	if err != nil {
		return err
	}

	opts := rig.DefaultOptions()
	opts.Throttle = benchThrottle
	opts.NoiseAmp = benchNoise
	opts.Window = int(bank.SampleRate)
	opts.Bench.GapMicros = dc.ResponseGapUs

	r, err := rig.New(dc, bank, cfg.Limits(), opts)
	if err != nil {
		return err
	}

	info := fmt.Sprintf("DShot%d %s, %d motors, %.0f Hz", dc.BitRate, dc.Policy.Name, dc.MotorCount(), bank.SampleRate)
	p := tea.NewProgram(initialBenchModel(r, info), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

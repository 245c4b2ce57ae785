// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/bridge"
	"github.com/Thermoquad/bdshot/pkg/dshot"
	"github.com/Thermoquad/bdshot/pkg/filter"
	"github.com/Thermoquad/bdshot/pkg/rig"
	"github.com/Thermoquad/bdshot/pkg/telemetry"
)

var (
	simCycles       int
	simThrottle     uint16
	simDrop         float64
	simCorrupt      float64
	simAsync        bool
	simPolicy       string
	simNoise        float64
	simWhite        float64
	simRecord       string
	simMQTT         string
	simPublishEvery int
	simReportEvery  int
	simRealtime     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the engine and notch bank against a simulated ESC bench",
	Long: `Run the complete pipeline offline: throttle commands are encoded and
played to simulated ESCs, their telemetry is captured, decoded and tracked,
and the tracked motor speeds tune the notch bank that filters a synthetic
gyro signal polluted with motor noise.

At the end the response statistics and the noise removed on every axis are
reported.

Optional outputs:
  --record capture.bin   Write every capture in link format; replay it with
                         the link commands (raw_log, monitor, probe) via --file.
  --mqtt tcp://host:1883 Publish motor snapshots (RPM, error score, notch
                         frequencies and weights) as CBOR.

Examples:
  bdshot simulate --throttle 3000 --cycles 9000
  bdshot simulate --drop 0.05 --corrupt 0.02 --record capture.bin
  bdshot simulate --mqtt tcp://localhost:1883 --realtime`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVarP(&simCycles, "cycles", "n", 2700, "Engine cycles to run")
	simulateCmd.Flags().Uint16VarP(&simThrottle, "throttle", "t", 3000, "Raw throttle of every motor (2000-4000)")
	simulateCmd.Flags().Float64Var(&simDrop, "drop", 0, "Probability a response is missing")
	simulateCmd.Flags().Float64Var(&simCorrupt, "corrupt", 0, "Probability a response bit is flipped")
	simulateCmd.Flags().BoolVar(&simAsync, "async", false, "Complete transfers from separate goroutines")
	simulateCmd.Flags().StringVar(&simPolicy, "policy", "", "Override the encoding policy (three-phase or sectioned)")
	simulateCmd.Flags().Float64Var(&simNoise, "noise", 20, "Motor noise amplitude at the fundamental (deg/s)")
	simulateCmd.Flags().Float64Var(&simWhite, "white", 0, "White gyro noise standard deviation (deg/s)")
	simulateCmd.Flags().StringVar(&simRecord, "record", "", "Write captures to a file in link format")
	simulateCmd.Flags().StringVar(&simMQTT, "mqtt", "", "MQTT broker URL (overrides mqtt_broker)")
	simulateCmd.Flags().IntVar(&simPublishEvery, "publish-every", 90, "Cycles between MQTT snapshots")
	simulateCmd.Flags().IntVar(&simReportEvery, "report-every", 900, "Cycles between progress lines (0 disables)")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false, "Pace cycles at the gyro sample rate")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc, err := cfg.DShot()
	if err != nil {
		return err
	}
	if simPolicy != "" {
		if dc.Policy, err = dshot.PolicyByName(simPolicy); err != nil {
			return err
		}
	}
	bank, err := cfg.Bank(dc.MotorCount())
	if err != nil {
		return err
	}

	opts := rig.DefaultOptions()
	opts.Throttle = simThrottle
	opts.NoiseAmp = simNoise
	opts.WhiteNoise = simWhite
	opts.Window = int(bank.SampleRate)
	opts.Bench.DropRate = simDrop
	opts.Bench.CorruptRate = simCorrupt
	opts.Bench.Async = simAsync
	opts.Bench.GapMicros = dc.ResponseGapUs

	r, err := rig.New(dc, bank, cfg.Limits(), opts)
	if err != nil {
		return err
	}

	fmt.Printf("bdshot - Simulation\n")
	fmt.Printf("DShot%d, %s policy, %d motors on %d ports\n", dc.BitRate, dc.Policy.Name, dc.MotorCount(), len(dc.Ports))
	fmt.Printf("Notch bank: %d harmonics, Q %.0f, %.0f Hz, %s\n", bank.Harmonics, bank.Q, bank.SampleRate, bank.Realization)
	fmt.Printf("Throttle: %d, cycles: %d\n", simThrottle, simCycles)

	var recorder *bridge.Recorder
	if simRecord != "" {
		f, err := os.Create(simRecord)
		if err != nil {
			return fmt.Errorf("failed to create record file: %w", err)
		}
		defer f.Close()

		if recorder, err = bridge.NewRecorder(f, dc); err != nil {
			return err
		}
		r.Engine().OnCapture(recorder.Capture)
		fmt.Printf("Recording: %s\n", simRecord)
	}

	broker := simMQTT
	if broker == "" {
		broker = cfg.GetMQTTBroker()
	}
	var pub *telemetry.Publisher
	if broker != "" {
		if pub, err = telemetry.Dial(broker, cfg.GetMQTTTopic()); err != nil {
			return err
		}
		defer pub.Close()
		fmt.Printf("Publishing: %s (%s)\n", broker, pub.Topic)
	}
	fmt.Println()

	var ticker *time.Ticker
	if simRealtime {
		ticker = time.NewTicker(time.Duration(float64(time.Second) / bank.SampleRate))
		defer ticker.Stop()
	}

	for i := 0; i < simCycles; i++ {
		if ticker != nil {
			<-ticker.C
		}
		c := r.Step()

		for j, resp := range c.Responses {
			for _, a := range c.Anomalies[j] {
				glog.V(1).Infof("cycle %d: %s", c.Index, a.Message)
			}
			if resp.Err != nil {
				glog.V(2).Infof("cycle %d: %s", c.Index, dshot.FormatResponse(resp))
			}
		}

		if pub != nil && simPublishEvery > 0 && c.Index%uint64(simPublishEvery) == 0 {
			if err := pub.Publish(telemetry.NewSnapshot(c.Index, r.Tracker(), r.Bank())); err != nil {
				glog.Warningf("%v", err)
			}
		}

		if simReportEvery > 0 && c.Index%uint64(simReportEvery) == 0 {
			printSimProgress(r, c)
		}
	}

	fmt.Println()
	fmt.Print(r.Stats().String())
	fmt.Println()
	printSimReport(r)

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return err
		}
		fmt.Printf("\nRecorded %d captures (%d bytes) to %s\n", recorder.Records(), recorder.Bytes(), simRecord)
	}
	if pub != nil {
		fmt.Printf("Published %d snapshots (%d dropped)\n", pub.Published(), pub.Dropped())
	}
	return nil
}

func printSimProgress(r *rig.Rig, c rig.Cycle) {
	rep := r.Report()
	fmt.Printf("[cycle %6d]", c.Index)
	for m := range rep.MotorRPM {
		fmt.Printf(" m%d=%5d", m, r.Tracker().RPM(m))
	}
	fmt.Printf(" | roll %+.1f dB\n", rep.AttenuationDB[0])
}

func printSimReport(r *rig.Rig) {
	rep := r.Report()
	bank := r.Bank()
	cfg := bank.Config()

	fmt.Printf("=== Motors ===\n")
	fmt.Printf("%-6s %10s %10s %8s  %s\n", "Motor", "True RPM", "Tracked", "Error", "Notches (Hz x weight)")
	for m, truth := range rep.MotorRPM {
		fmt.Printf("%-6d %10.0f %10d %8.1f ", m, truth, r.Tracker().RPM(m), r.Tracker().Error(m))
		for h := 0; h < cfg.Harmonics; h++ {
			f, w := bank.Stage(0, m, h)
			fmt.Printf(" %6.1fx%.2f", f.Frequency, w)
		}
		fmt.Println()
	}
	fmt.Printf("Mean tracking error: %.1f RPM\n\n", rep.RPMError)

	fmt.Printf("=== Gyro noise (last %d samples) ===\n", rep.Samples)
	fmt.Printf("%-6s %10s %10s %10s\n", "Axis", "Raw RMS", "Filtered", "Change")
	for axis := 0; axis < filter.Axes; axis++ {
		fmt.Printf("%-6s %10.3f %10.3f %+8.1f dB\n",
			axisName(axis), rep.RawRMS[axis], rep.FilteredRMS[axis], rep.AttenuationDB[axis])
	}
}

func axisName(axis int) string {
	switch axis {
	case 0:
		return "roll"
	case 1:
		return "pitch"
	case 2:
		return "yaw"
	}
	return fmt.Sprintf("axis%d", axis)
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bdshot/pkg/dshot"
)

var (
	encodePolicy string
	encodeValue  bool
	encodeWords  bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode <throttle>...",
	Short: "Encode throttle commands into frames and a playback waveform",
	Long: `Encode one throttle command per motor and show the resulting frames and
the playback buffer of a port driving them.

Throttle commands use the raw 2000-4000 domain. Values at or below 1953 disarm
the motor; values that would land on a command (1-47) clamp to the minimum
throttle. With --value the arguments are internal 11-bit values and are
encoded without clamping, which is how special commands are sent.

Motor i is placed on pin i.

Examples:
  bdshot encode 2000 3000 4000
  bdshot encode --policy sectioned 2500
  bdshot encode --value 0 12 --words`,
	Args: cobra.RangeArgs(1, 16),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodePolicy, "policy", "three-phase", "Encoding policy (three-phase or sectioned)")
	encodeCmd.Flags().BoolVar(&encodeValue, "value", false, "Arguments are internal frame values")
	encodeCmd.Flags().BoolVar(&encodeWords, "words", false, "Dump the set/reset words")
}

func runEncode(cmd *cobra.Command, args []string) error {
	policy, err := dshot.PolicyByName(encodePolicy)
	if err != nil {
		return err
	}

	frames := make([]dshot.Frame, len(args))
	pins := make([]uint8, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid throttle %q: %w", arg, err)
		}
		if encodeValue {
			if v > dshot.MaxThrottle {
				return fmt.Errorf("value %d exceeds %d", v, dshot.MaxThrottle)
			}
			frames[i] = dshot.EncodeValue(uint16(v))
		} else {
			frames[i] = dshot.EncodeThrottle(uint16(v))
		}
		pins[i] = uint8(i)
	}

	w := dshot.NewWaveform(policy, pins)
	if err := w.Fill(frames); err != nil {
		return err
	}

	fmt.Printf("Policy: %s (%d sections per bit, %d counts)\n\n", policy.Name, policy.Sections(), policy.FrameLength)
	for i, f := range frames {
		fmt.Printf("Motor %d (pin %d): %s\n", i, pins[i], dshot.FormatFrame(f))
		fmt.Printf("  %s\n", dshot.FormatWaveform(w, pins[i]))
	}

	if encodeWords {
		n := policy.Sections()
		words := w.Words()
		fmt.Printf("\nPlayback buffer (%d words):\n", len(words))
		for slot := 0; slot < len(words)/n; slot++ {
			fmt.Printf("  slot %2d:", slot)
			for s := 0; s < n; s++ {
				fmt.Printf(" %08X", words[slot*n+s])
			}
			fmt.Println()
		}
	}
	return nil
}

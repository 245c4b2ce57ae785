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
	decodePoles  int
	decodePeriod bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <raw>...",
	Short: "Decode raw telemetry response words",
	Long: `Decode 21-bit telemetry response words as recovered from a capture and
show every step: the GCR groups, the nibbles, the checksum, the eRPM period
and the mechanical RPM.

Words may be given in decimal, hex (0x...) or binary (0b...). With --period
the arguments are eRPM periods in microseconds; each is encoded the way an
ESC would send it and then decoded again.

Examples:
  bdshot decode 0x1A5F3C
  bdshot decode --poles 12 0b110101001011010100101
  bdshot decode --period 218 572`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().IntVar(&decodePoles, "poles", dshot.DefaultPolesPerMotor, "Magnet poles per motor")
	decodeCmd.Flags().BoolVar(&decodePeriod, "period", false, "Arguments are eRPM periods in microseconds")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if decodePoles < 2 || decodePoles%2 != 0 {
		return fmt.Errorf("poles must be an even number >= 2, got %d", decodePoles)
	}

	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid word %q: %w", arg, err)
		}

		raw := uint32(v)
		if decodePeriod {
			value := dshot.EncodeTelemetry(raw)
			raw = dshot.EncodeGCR(value)
			fmt.Printf("period=%dus -> value=0x%04X\n", v, value)
		}
		fmt.Print(dshot.FormatRaw(raw, decodePoles))
		fmt.Println()
	}
	return nil
}

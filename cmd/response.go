// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Thermoquad/bdshot/pkg/filter"
)

var (
	responseOut    string
	responsePoints int
	responseMin    float64
	responseMax    float64
)

var responseCmd = &cobra.Command{
	Use:   "response <rpm>...",
	Short: "Plot the notch bank magnitude response at given motor speeds",
	Long: `Tune the notch bank to the given motor speeds and plot the magnitude
response of one axis cascade, in dB, as a PNG. One RPM per motor; when fewer
are given the last one is repeated.

A table of every notch (frequency, weight and whether it is active) is
printed too.

Examples:
  bdshot response 12000
  bdshot response 9000 9500 10000 10500 --out bank.png
  bdshot response 3000 --min 0 --max 200`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResponse,
}

func init() {
	rootCmd.AddCommand(responseCmd)
	responseCmd.Flags().StringVarP(&responseOut, "out", "o", "notch_response.png", "Output PNG file")
	responseCmd.Flags().IntVar(&responsePoints, "points", 2000, "Frequency points to evaluate")
	responseCmd.Flags().Float64Var(&responseMin, "min", 1, "Lowest frequency (Hz)")
	responseCmd.Flags().Float64Var(&responseMax, "max", 0, "Highest frequency (Hz, default Nyquist)")
}

// fixedRPM is a constant RPM source.
type fixedRPM []uint32

func (f fixedRPM) MotorCount() int      { return len(f) }
func (f fixedRPM) RPM(motor int) uint32 { return f[motor] }

func runResponse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc, err := cfg.DShot()
	if err != nil {
		return err
	}
	bc, err := cfg.Bank(dc.MotorCount())
	if err != nil {
		return err
	}
	if len(args) > bc.Motors {
		return fmt.Errorf("got %d speeds for %d motors", len(args), bc.Motors)
	}

	rpms := make(fixedRPM, bc.Motors)
	for m := range rpms {
		arg := args[len(args)-1]
		if m < len(args) {
			arg = args[m]
		}
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid RPM %q: %w", arg, err)
		}
		rpms[m] = uint32(v)
	}

	bank, err := filter.NewNotchBank(bc)
	if err != nil {
		return err
	}
	bank.Update(rpms)

	lo, hi := responseMin, responseMax
	if hi <= 0 {
		hi = bc.SampleRate / 2
	}
	if lo < 0 || lo >= hi || responsePoints < 2 {
		return fmt.Errorf("invalid range %g-%g Hz with %d points", lo, hi, responsePoints)
	}

	printNotchTable(bank, rpms)

	if err := plotBankResponse(bank, lo, hi, responsePoints, responseOut); err != nil {
		return err
	}
	fmt.Printf("\nWrote %s\n", responseOut)
	return nil
}

func printNotchTable(bank *filter.NotchBank, rpms fixedRPM) {
	cfg := bank.Config()
	fmt.Printf("Notch bank: %d motors x %d harmonics, Q %.0f, %.0f Hz, notches up to %.1f Hz\n\n",
		cfg.Motors, cfg.Harmonics, cfg.Q, cfg.SampleRate, cfg.MaxFilterable())
	fmt.Printf("%-6s %8s %9s %10s %7s  %s\n", "Motor", "RPM", "Harmonic", "Target Hz", "Weight", "Notch Hz")
	for m, rpm := range rpms {
		for h := 0; h < cfg.Harmonics; h++ {
			f, w := bank.Stage(0, m, h)
			target := float64(rpm) * float64(h+1) / 60
			state := ""
			switch {
			case w == 0:
				state = " (bypassed)"
			case w < 1:
				state = " (fading)"
			}
			fmt.Printf("%-6d %8d %9d %10.1f %7.2f  %.1f%s\n", m, rpm, h+1, target, w, f.Frequency, state)
		}
	}
}

// motorGain is the response of the stages of one motor on axis 0.
func motorGain(bank *filter.NotchBank, motor int, frequency float64) float64 {
	h := complex(1, 0)
	for i := 0; i < bank.Config().Harmonics; i++ {
		f, w := bank.Stage(0, motor, i)
		wc := complex(w, 0)
		h *= wc*f.Response(frequency) + (1 - wc)
	}
	return cmplx.Abs(h)
}

func toDB(gain float64) float64 {
	return 20 * math.Log10(math.Max(gain, 1e-6))
}

func plotBankResponse(bank *filter.NotchBank, lo, hi float64, points int, path string) error {
	cfg := bank.Config()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Notch bank response (Q %.0f, %.0f Hz)", cfg.Q, cfg.SampleRate)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Gain (dB)"

	step := (hi - lo) / float64(points-1)
	motors := make([]plotter.XYs, cfg.Motors)
	for m := range motors {
		motors[m] = make(plotter.XYs, points)
	}
	total := make(plotter.XYs, points)
	for i := 0; i < points; i++ {
		f := lo + float64(i)*step
		for m := range motors {
			motors[m][i] = plotter.XY{X: f, Y: toDB(motorGain(bank, m, f))}
		}
		total[i] = plotter.XY{X: f, Y: toDB(bank.Response(0, f))}
	}

	for m, pts := range motors {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(m + 1)
		line.Width = vg.Points(0.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("motor %d", m), line)
	}

	totalLine, err := plotter.NewLine(total)
	if err != nil {
		return err
	}
	totalLine.Color = plotutil.Color(0)
	totalLine.Width = vg.Points(1.5)
	p.Add(totalLine)
	p.Legend.Add("cascade", totalLine)

	p.Legend.Top = false
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = 10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save response plot: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ammarkh95/go-analog/measure"
	"github.com/ammarkh95/go-analog/waveforms"
)

var (
	acquireInput      int
	acquireSampleRate float64
	acquireBufferSize int
	acquireRange      float64
	acquireOffset     float64
	acquireTimeout    time.Duration
	acquireRaw        bool
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Capture one scope buffer and print measurements",
	Long: `Arm the oscilloscope, wait for one acquisition to complete and
print the buffer statistics. With --raw the individual samples are
printed instead, one per line, suitable for piping into a plotter.

Examples:
  analogctl acquire --sample-rate 100000 --buffer-size 4096
  analogctl acquire --input 1 --range 25 --raw > samples.txt`,
	RunE: runAcquire,
}

func init() {
	rootCmd.AddCommand(acquireCmd)

	acquireCmd.Flags().IntVarP(&acquireInput, "input", "i", 0,
		"scope input channel (0-3)")
	acquireCmd.Flags().Float64VarP(&acquireSampleRate, "sample-rate", "r", 100000,
		"sample rate in Hz")
	acquireCmd.Flags().IntVarP(&acquireBufferSize, "buffer-size", "b", 4096,
		"number of samples to capture")
	acquireCmd.Flags().Float64Var(&acquireRange, "range", 5,
		"input range in volts")
	acquireCmd.Flags().Float64Var(&acquireOffset, "offset", 0,
		"input offset in volts")
	acquireCmd.Flags().DurationVar(&acquireTimeout, "timeout", 30*time.Second,
		"acquisition timeout")
	acquireCmd.Flags().BoolVar(&acquireRaw, "raw", false,
		"print raw samples instead of statistics")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	dev, err := openScopeDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	samples, err := dev.SingleAcquisition(ctx, waveforms.AnalogInput(acquireInput),
		waveforms.RecordingConfig{
			SampleRate: acquireSampleRate,
			BufferSize: acquireBufferSize,
			Range:      acquireRange,
			Offset:     acquireOffset,
			Mode:       waveforms.AcquisitionSingle,
		})
	if err != nil {
		return err
	}

	if acquireRaw {
		for _, s := range samples {
			fmt.Printf("%g\n", s)
		}
		return nil
	}

	stats := map[string]interface{}{
		"samples":      len(samples),
		"dc_average":   measure.DCAverage(samples),
		"rms":          measure.RMS(samples),
		"ac_rms":       measure.ACRMS(samples),
		"peak_to_peak": measure.PeakToPeak(samples),
	}
	if freq, err := measure.DominantFrequency(samples, acquireSampleRate); err == nil {
		stats["frequency"] = freq
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("samples:      %d\n", len(samples))
	fmt.Printf("dc average:   %.6f V\n", stats["dc_average"])
	fmt.Printf("rms:          %.6f V\n", stats["rms"])
	fmt.Printf("ac rms:       %.6f V\n", stats["ac_rms"])
	fmt.Printf("peak to peak: %.6f V\n", stats["peak_to_peak"])
	if freq, ok := stats["frequency"]; ok {
		fmt.Printf("frequency:    %.1f Hz\n", freq)
	}
	return nil
}

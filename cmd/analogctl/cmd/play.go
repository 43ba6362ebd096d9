package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ammarkh95/go-analog/internal/config"
	"github.com/ammarkh95/go-analog/waveforms"
)

var (
	playOutput    int
	playSignal    string
	playFrequency float64
	playAmplitude float64
	playOffset    float64
	playSymmetry  float64
	playPhase     float64
	playStop      bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Drive a waveform generator output",
	Long: `Configure and start one of the waveform generator outputs.
The signal keeps playing after analogctl exits, as long as the
device stays powered.

Examples:
  analogctl play --signal sine --frequency 1000 --amplitude 1
  analogctl play --output 1 --signal square --frequency 50 --symmetry 25
  analogctl play --stop`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playOutput, "output", "o", 0,
		"waveform generator output (0 or 1)")
	playCmd.Flags().StringVarP(&playSignal, "signal", "s", "sine",
		"signal shape (dc, sine, square, triangle, ramp_up, ramp_down, noise, pulse)")
	playCmd.Flags().Float64VarP(&playFrequency, "frequency", "f", 1000,
		"frequency in Hz")
	playCmd.Flags().Float64VarP(&playAmplitude, "amplitude", "a", 1,
		"amplitude in volts")
	playCmd.Flags().Float64Var(&playOffset, "offset", 0,
		"DC offset in volts")
	playCmd.Flags().Float64Var(&playSymmetry, "symmetry", 50,
		"symmetry/duty in percent")
	playCmd.Flags().Float64Var(&playPhase, "phase", 0,
		"phase in degrees")
	playCmd.Flags().BoolVar(&playStop, "stop", false,
		"stop the output instead of starting it")
}

func openScopeDevice() (*waveforms.Device, error) {
	cfg := config.Get()
	return waveforms.Open(
		cfg.AnalogDiscovery.DeviceIndex,
		cfg.AnalogDiscovery.ConfigNumber)
}

func runPlay(cmd *cobra.Command, args []string) error {
	dev, err := openScopeDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	output := waveforms.AnalogOutput(playOutput)
	if playStop {
		if err := dev.StopSignal(output); err != nil {
			return err
		}
		fmt.Printf("output %d stopped\n", playOutput)
		return nil
	}

	signal, ok := waveforms.ParseOutputSignal(playSignal)
	if !ok {
		return fmt.Errorf("unknown signal %q", playSignal)
	}

	err = dev.PlaySignal(output, waveforms.SignalConfig{
		Signal:    signal,
		Frequency: playFrequency,
		Amplitude: playAmplitude,
		Offset:    playOffset,
		Symmetry:  playSymmetry,
		Phase:     playPhase,
	})
	if err != nil {
		return err
	}

	fmt.Printf("output %d playing %s at %g Hz, %g V\n",
		playOutput, playSignal, playFrequency, playAmplitude)
	return nil
}

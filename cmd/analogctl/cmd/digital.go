package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	digitalDirections uint16
	digitalOutputs    uint16
)

var digitalCmd = &cobra.Command{
	Use:   "digital",
	Short: "Drive and read the digital IO pins",
	Long: `Set pin directions (bit set = output), write output levels and
read back the pin states. The current pin mask is always printed.

Examples:
  analogctl digital --directions 0x00ff --outputs 0x00a5
  analogctl digital`,
	RunE: runDigital,
}

func init() {
	rootCmd.AddCommand(digitalCmd)

	digitalCmd.Flags().Uint16Var(&digitalDirections, "directions", 0,
		"direction mask, one bit per pin")
	digitalCmd.Flags().Uint16Var(&digitalOutputs, "outputs", 0,
		"output level mask, one bit per pin")
}

func runDigital(cmd *cobra.Command, args []string) error {
	dev, err := openScopeDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	if cmd.Flags().Changed("directions") {
		if err := dev.SetDigitalDirections(digitalDirections); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("outputs") {
		if err := dev.WriteDigital(digitalOutputs); err != nil {
			return err
		}
	}

	pins, err := dev.ReadDigital()
	if err != nil {
		return err
	}
	fmt.Printf("pins: 0x%04x\n", pins)
	return nil
}

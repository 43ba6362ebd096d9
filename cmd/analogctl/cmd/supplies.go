package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	suppliesPositive float64
	suppliesNegative float64
	suppliesOff      bool
)

var suppliesCmd = &cobra.Command{
	Use:   "supplies",
	Short: "Control the programmable power supplies",
	Long: `Set, read back or disable the positive and negative power rails.
Without --positive/--negative/--off the current status is printed.

Examples:
  analogctl supplies --positive 3.3 --negative -3.3
  analogctl supplies
  analogctl supplies --off`,
	RunE: runSupplies,
}

func init() {
	rootCmd.AddCommand(suppliesCmd)

	suppliesCmd.Flags().Float64VarP(&suppliesPositive, "positive", "p", 0,
		"positive rail voltage (0 to 5 V)")
	suppliesCmd.Flags().Float64VarP(&suppliesNegative, "negative", "n", 0,
		"negative rail voltage (-5 to 0 V)")
	suppliesCmd.Flags().BoolVar(&suppliesOff, "off", false,
		"disable both rails")
}

func runSupplies(cmd *cobra.Command, args []string) error {
	dev, err := openScopeDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	switch {
	case suppliesOff:
		if err := dev.DisableSupplies(); err != nil {
			return err
		}
		fmt.Println("supplies disabled")
		return nil
	case cmd.Flags().Changed("positive") || cmd.Flags().Changed("negative"):
		if err := dev.SetSupplies(suppliesPositive, suppliesNegative); err != nil {
			return err
		}
	}

	status, err := dev.Supplies()
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Printf("enabled:  %v\n", status.Enabled)
	fmt.Printf("positive: %.3f V\n", status.PositiveVoltage)
	fmt.Printf("negative: %.3f V\n", status.NegativeVoltage)
	fmt.Printf("usb:      %.3f V, %.3f A\n", status.USBVoltage, status.USBCurrent)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ammarkh95/go-analog/waveforms"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached instruments",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := waveforms.Enumerate()
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("no instruments attached")
		return nil
	}
	for i, d := range devices {
		fmt.Printf("%d: %s (serial %s)\n", i, d.Name, d.SerialNumber)
	}
	return nil
}

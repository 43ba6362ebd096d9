package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ammarkh95/go-analog/internal/config"
	"github.com/ammarkh95/go-analog/internal/logger"
)

var (
	configPath string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "analogctl",
	Short: "Bench control for Analog Discovery and ADALM1000 instruments",
	Long: `analogctl drives a locally attached Digilent Analog Discovery or
Analog Devices ADALM1000 from the command line.

Examples:
  analogctl devices                                  # List attached instruments
  analogctl play --signal sine --frequency 1000 --amplitude 1
  analogctl acquire --sample-rate 100000 --buffer-size 4096
  analogctl supplies --positive 3.3 --negative -3.3
  analogctl smu --channel 0 --mode svmi --value 2.5 --read 100`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return err
		}
		return logger.Init(&config.Get().Log)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"print results as JSON")
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ayusman/posetrack/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Load the configuration file and environment and report any errors.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Print the effective configuration")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Configuration is invalid: %v\n", err)
		return err
	}

	source := configPath
	if source == "" {
		source = "(defaults and search path)"
	}
	color.New(color.FgGreen, color.Bold).Printf("Configuration is valid: %s\n", source)

	if validateDump {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}

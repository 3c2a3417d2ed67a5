// Command masterd is the HarmonicIO Master: the resource-management core
// that bin-packs container requests onto registered Workers and scales the
// fleet in response to ingestion backlog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Druvan/HarmonicIO/pkg/log"
)

var (
	// Version information, set via ldflags during build.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "masterd",
	Short:   "HarmonicIO Master — bin-packing allocator and load-based autoscaler",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("masterd version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to the master YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the masterd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("masterd version %s (%s)\n", Version, Commit)
	},
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

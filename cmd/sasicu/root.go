// The sasicu command runs the cardiovascular-respiratory patient simulator
// from the command line.
package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sasicu",
	Short: "sasicu simulates a monitored intensive-care patient.",
	Long: `sasicu runs a whole-body cardiovascular and respiratory model and ` +
		`streams the resulting vital signs the way a bedside monitor would. ` +
		`It serves a live web monitor, publishes vitals and waveforms over ` +
		`NATS, and records averaged vitals to SQLite.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A missing .env file is fine; flags and the process environment
		// still apply.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

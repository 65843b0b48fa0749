// Command aadhaarctl runs one-off reloads against a data directory and asks a
// running service to reload over AMQP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"aadhaar/internal/config"
	"aadhaar/internal/log"
)

var (
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "aadhaarctl",
	Short: "Operator tool for the Aadhaar ingestion pipeline",
	Long: `aadhaarctl loads the enrolment and update extracts the same way the
service does and prints the derived tables, or publishes a reload request
to a running service.`,
	SilenceUsage: true,
}

func newLogger() *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(logLevel),
		Format:    "text",
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
}

func init() {
	_ = godotenv.Load()
	cfg = config.Load()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(triggerReloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

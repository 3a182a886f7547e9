package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "modhost",
	Short: "Host plugin modules for renderer front-ends",
	Long: `modhost runs plugin modules, each with its own IPC channel and
persisted settings, and serves them to renderers.

  modhost run       # host modules behind the WebSocket renderer endpoint
  modhost ui        # host modules with the terminal panel attached
  modhost settings  # inspect or reset persisted setting values
  modhost modules   # list built-in modules`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: MODHOST_CONFIG or ./modhost.{json,yaml})")
}

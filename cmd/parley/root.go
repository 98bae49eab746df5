package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aretw0/parley/pkg/runner"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley bridges a turn-based engine to a caller over one duplex stream",
	Long: `Parley serves an engine over stdin/stdout or a TCP port using a line-oriented marker
protocol: one request per line in, marked regions and a termination marker out.`,
	SilenceUsage: true,
}

// signals is set by Execute and nil under tests.
var signals *runner.SignalManager

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context, which shuts a serving session down cleanly.
func Execute() {
	signals = runner.NewSignalManager(context.Background())
	err := rootCmd.ExecuteContext(signals.Context())
	signals.Stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	addRootFlags(rootCmd.PersistentFlags())
}

func addRootFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Configuration file (default ./parley.yaml if present)")
	fs.Bool("debug", false, "Enable debug logging on stderr")
	fs.String("log-format", "", "Log format: text or json")
}

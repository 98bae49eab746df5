package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aretw0/parley/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one session on stdio or a TCP port",
	Long: `Starts the configured engine and runs one session. Without --listen the protocol runs on
stdin/stdout; with --listen the first TCP connection is served and the port is closed.
Diagnostics always go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return cli.Serve(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringP("listen", "l", "", "TCP address to accept one caller on (default stdio)")
	fs.String("framing", "", "Wire framing: sentinel or cbor")
	fs.Bool("compat", false, "Legacy wire style: no escaping, <question> tags")
	fs.String("engine", "", "Engine kind: echo, script or process")
	fs.String("script", "", "Rule file for the script engine (implies --engine script)")
	fs.String("exit-keyword", "", "Request line that ends the session")
	fs.String("ready-banner", "", "Text written once the engine is ready")
	fs.String("metrics-addr", "", "Serve /metrics and /healthz on this address")
	fs.String("recorder", "", "Turn recorder: none, memory or redis")
	fs.Bool("yes", false, "Approve every confirmation that does not require an explicit yes")
}

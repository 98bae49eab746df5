package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/protocol"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Talk to a session served with --listen",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		quiet, _ := cmd.Flags().GetBool("quiet")

		cfg := opts.Config
		if addr == "" {
			addr = cfg.Listen
		}
		tty := tui.IsTerminal(os.Stdout)
		if tty && !quiet {
			tui.PrintBanner(os.Stdout, versionString())
		}

		var interrupts cli.Interrupts
		if signals != nil {
			interrupts = signals
		}

		return cli.Attach(cmd.Context(), cli.AttachOptions{
			Addr:        addr,
			Framing:     protocol.Framing(cfg.Protocol.Framing),
			Compat:      cfg.Protocol.Compat,
			ExitKeyword: cfg.Protocol.ExitKeyword,
			ReadyBanner: cfg.Protocol.ReadyBanner,
			In:          os.Stdin,
			Out:         os.Stdout,
			Renderer:    tui.NewRenderer(os.Stdout, tty),
			Logger:      opts.Logger,
			Interrupts:  interrupts,
		})
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().String("addr", "", "Address of the serving session (default: listen from config)")
	attachCmd.Flags().Bool("quiet", false, "Do not print the banner")
	attachCmd.Flags().String("framing", "", "Wire framing: sentinel or cbor")
	attachCmd.Flags().Bool("compat", false, "Legacy wire style: no escaping, <question> tags")
	attachCmd.Flags().String("exit-keyword", "", "Line that ends the session")
	attachCmd.Flags().String("ready-banner", "", "Banner the server writes when ready")
}

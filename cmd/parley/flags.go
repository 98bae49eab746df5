package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/config"
)

// loadOptions reads the configuration file, then lets explicitly set flags override it.
func loadOptions(cmd *cobra.Command) (cli.ServeOptions, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cli.ServeOptions{}, err
	}

	flags := cmd.Flags()
	setString(flags, "listen", &cfg.Listen)
	setString(flags, "framing", &cfg.Protocol.Framing)
	setBool(flags, "compat", &cfg.Protocol.Compat)
	setString(flags, "engine", &cfg.Engine.Kind)
	setString(flags, "exit-keyword", &cfg.Protocol.ExitKeyword)
	setString(flags, "ready-banner", &cfg.Protocol.ReadyBanner)
	setString(flags, "metrics-addr", &cfg.Metrics.Addr)
	setString(flags, "recorder", &cfg.Recorder.Kind)
	setBool(flags, "yes", &cfg.Session.AutoApprove)
	setString(flags, "log-format", &cfg.Log.Format)

	var scriptPath string
	if setString(flags, "script", &scriptPath) {
		cfg.Engine.Kind = config.EngineScript
		if cfg.Engine.Options == nil {
			cfg.Engine.Options = map[string]any{}
		}
		cfg.Engine.Options["path"] = scriptPath
	}

	if err := cfg.Validate(); err != nil {
		return cli.ServeOptions{}, err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(os.Stderr, debug, cfg.Log.Format)
	if err != nil {
		return cli.ServeOptions{}, err
	}

	return cli.ServeOptions{Config: cfg, Logger: logger}, nil
}

func setString(flags *pflag.FlagSet, name string, dst *string) bool {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return false
	}
	*dst, _ = flags.GetString(name)
	return true
}

func setBool(flags *pflag.FlagSet, name string, dst *bool) bool {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return false
	}
	*dst, _ = flags.GetBool(name)
	return true
}

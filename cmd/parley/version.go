package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/parley"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of parley",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parley version %s\n", versionString())
	},
}

func versionString() string {
	return strings.TrimSpace(parley.Version)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

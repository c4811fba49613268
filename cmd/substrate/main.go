// Package main implements the substrate command, a thin operational
// surface over the library: an interactive store exerciser, an event-engine
// demo, a UDP traceroute, DNS lookups, subprocess execution, and
// configuration inspection.
//
// Configuration is layered (defaults, then an optional TOML file, then
// SUBSTRATE_-prefixed environment variables); see internal/config.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/config"
	"github.com/dreamware/substrate/internal/logging"
)

var (
	configPath string
	cfg        config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "substrate",
		Short:         "infrastructure building blocks: radix store, event engine, and friends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.New(configPath)
			if err != nil {
				return err
			}
			cfg, err = loader.Load()
			if err != nil {
				return err
			}
			level, err := logging.LevelFromString(strings.ToUpper(cfg.LogLevel))
			if err == nil {
				logging.ConfigureDefault(logging.New(level, os.Stderr))
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(
		newStoreCmd(),
		newEventsCmd(),
		newTraceCmd(),
		newDNSCmd(),
		newExecCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "substrate:", err)
		os.Exit(1)
	}
}

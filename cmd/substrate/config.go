package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "inspect or seed configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the effective layered configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "write the effective configuration to a file for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		},
	})

	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/substrate/internal/procspawn"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "run a subprocess, echoing its captured output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := procspawn.Run(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(result.Stdout)
			cmd.ErrOrStderr().Write(result.Stderr)
			if result.ExitCode != 0 {
				os.Exit(result.ExitCode)
			}
			return nil
		},
	}
}

package main

import (
	"github.com/spf13/cobra"

	"streampack/internal/daemon"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload API and packaging workers in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.daemonLogger()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), cfg, logger)
		},
	}
}

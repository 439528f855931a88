package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var jobID string
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log or a job's processing log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFile)
			if id := strings.TrimSpace(jobID); id != "" {
				if !jobs.ValidID(id) {
					return fmt.Errorf("invalid job id %q", id)
				}
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				path = filepath.Join(store.Dir(id), jobs.LogFileName)
				store.Close()
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, offset, 0, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&jobID, "job", "j", "", "Show this job's processing log instead of the daemon log")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"streampack/internal/events"
	"streampack/internal/fileutil"
	"streampack/internal/jobs"
	"streampack/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Package a single video without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := args[0]
			if !jobs.AllowedUpload(source) {
				return fmt.Errorf("unsupported file type %q (expected .mov, .mp4 or .mkv)", filepath.Ext(source))
			}
			if info, err := os.Stat(source); err != nil {
				return fmt.Errorf("source: %w", err)
			} else if info.IsDir() {
				return fmt.Errorf("source %s is a directory", source)
			}
			if strings.TrimSpace(title) == "" {
				title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger := ctx.commandLogger(cmd)
			publisher, err := events.New(cfg.Events)
			if err != nil {
				return err
			}
			publisher = events.NewLogged(publisher, cfg.Events.Backend, logger)
			defer publisher.Close()

			orchestrator, err := pipeline.NewFromConfig(cfg, store, publisher, logger)
			if err != nil {
				return err
			}

			job := jobs.New(title, filepath.Base(source))
			dir := store.Dir(job.ID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create job directory: %w", err)
			}
			if err := fileutil.CopyFile(source, filepath.Join(dir, job.OriginalName())); err != nil {
				_ = os.RemoveAll(dir)
				return fmt.Errorf("stage source: %w", err)
			}
			if err := store.Create(cmd.Context(), job); err != nil {
				_ = os.RemoveAll(dir)
				return err
			}

			claimed, err := claimLocal(cmd.Context(), orchestrator, job)
			if err != nil {
				return err
			}
			if !claimed {
				if asJSON {
					if current, err := store.Get(cmd.Context(), job.ID); err == nil {
						job = current
					}
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Job", statusInfo, job.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Status", statusWarn, "Picked up by daemon", colorize))
				return nil
			}

			runErr := orchestrator.Run(cmd.Context(), job)
			if asJSON {
				if err := writeJSON(cmd, job); err != nil {
					return errors.Join(runErr, err)
				}
				return runErr
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Job", statusInfo, job.ID, colorize))
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), jobStatusLabel(job.Status), colorize))
			if job.ManifestRef != "" {
				fmt.Fprintln(out, renderStatusLine("Manifest", statusInfo, filepath.Join(dir, job.ManifestRef), colorize))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
			}
			if job.LogRef != "" {
				fmt.Fprintln(out, renderStatusLine("Log", statusInfo, filepath.Join(dir, job.LogRef), colorize))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Job title (defaults to the file name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final job record as JSON")
	return cmd
}

type claimer interface {
	Claim(ctx context.Context, job *jobs.Job) error
}

// claimLocal claims job for this process. It reports false without error when
// a daemon sharing the store claimed the job first.
func claimLocal(ctx context.Context, c claimer, job *jobs.Job) (bool, error) {
	err := c.Claim(ctx, job)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jobs.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}

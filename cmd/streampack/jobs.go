package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"streampack/internal/jobs"
	"streampack/internal/pipeline"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect persisted jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if asJSON {
				if list == nil {
					list = []*jobs.Job{}
				}
				return writeJSON(cmd, list)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					job.ID,
					job.Title,
					jobStatusLabel(job.Status),
					humanize.RelTime(job.CreatedAt, now, "ago", "from now"),
				})
			}
			fmt.Fprint(out, tableSpec{
				headers: []string{"ID", "Title", "Status", "Created"},
				rows:    rows,
				footer:  []string{"", "", "", fmt.Sprintf("%d jobs", len(list))},
			}.render())
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, processing, done, error)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func parseStatusFlags(values []string) ([]jobs.Status, error) {
	var statuses []jobs.Status
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var showLog bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job and optionally its processing log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if !jobs.ValidID(id) {
				return fmt.Errorf("invalid job id %q", id)
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, job)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			dir := store.Dir(job.ID)
			for _, line := range renderSectionHeader(job.Title, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("ID", statusInfo, job.ID, colorize))
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), jobStatusLabel(job.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Source", statusInfo, job.SourceName, colorize))
			fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt.Local().Format(time.DateTime), colorize))
			fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, job.UpdatedAt.Local().Format(time.DateTime), colorize))
			if job.ManifestRef != "" {
				fmt.Fprintln(out, renderStatusLine("Manifest", statusInfo, filepath.Join(dir, job.ManifestRef), colorize))
			}
			if job.ThumbnailRef != "" {
				fmt.Fprintln(out, renderStatusLine("Thumbnail", statusInfo, filepath.Join(dir, job.ThumbnailRef), colorize))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
			}

			if !showLog {
				return nil
			}
			text, err := pipeline.NewProcessingLog(filepath.Join(dir, jobs.LogFileName)).Read()
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, renderStatusLine("Log", statusWarn, "not written yet", colorize))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Processing log", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprint(out, text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showLog, "log", "l", false, "Print the processing log")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"streampack/internal/preflight"
	"streampack/internal/staging"
)

func newStorageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show disk usage of job directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.UploadsDir)
			if err != nil {
				return fmt.Errorf("list job directories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No job directories under %s\n", cfg.Paths.UploadsDir)
			} else {
				now := time.Now()
				var total int64
				rows := make([][]string, 0, len(dirs))
				for _, dir := range dirs {
					total += dir.Size
					rows = append(rows, []string{
						dir.Name,
						humanize.IBytes(uint64(max(dir.Size, 0))),
						humanize.RelTime(dir.ModTime, now, "ago", "from now"),
					})
				}
				fmt.Fprint(out, tableSpec{
					title:   cfg.Paths.UploadsDir,
					headers: []string{"Job", "Size", "Modified"},
					aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
					rows:    rows,
					footer:  []string{fmt.Sprintf("%d directories", len(dirs)), humanize.IBytes(uint64(max(total, 0))), ""},
				}.render())
				fmt.Fprintln(out)
			}

			if free, err := preflight.FreeBytes(cfg.Paths.UploadsDir); err == nil {
				fmt.Fprintf(out, "Free space: %s\n", humanize.IBytes(free))
			}
			return nil
		},
	}
}

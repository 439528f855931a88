package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"streampack/internal/probe"
)

type probeOutput struct {
	Path               string  `json:"path"`
	PhysicalWidth      int     `json:"physical_width"`
	PhysicalHeight     int     `json:"physical_height"`
	DisplayWidth       int     `json:"display_width"`
	DisplayHeight      int     `json:"display_height"`
	RotationDegrees    int     `json:"rotation"`
	AspectRatio        string  `json:"aspect_ratio"`
	AspectRatioDecimal float64 `json:"aspect_ratio_decimal"`
}

func newProbeOutput(path string, props probe.VideoProperties) probeOutput {
	return probeOutput{
		Path:               path,
		PhysicalWidth:      props.PhysicalWidth,
		PhysicalHeight:     props.PhysicalHeight,
		DisplayWidth:       props.DisplayWidth,
		DisplayHeight:      props.DisplayHeight,
		RotationDegrees:    props.RotationDegrees,
		AspectRatio:        props.AspectRatio().RatString(),
		AspectRatioDecimal: props.AspectRatioDecimal,
	}
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the video geometry ffprobe reports for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			props, err := probe.New(cfg.FFprobeBinary(), ctx.commandLogger(cmd)).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result := newProbeOutput(args[0], props)
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, tableSpec{
				title:   result.Path,
				headers: []string{"Property", "Value"},
				aligns:  []columnAlignment{alignLeft, alignRight},
				rows: [][]string{
					{"Physical size", fmt.Sprintf("%dx%d", result.PhysicalWidth, result.PhysicalHeight)},
					{"Display size", fmt.Sprintf("%dx%d", result.DisplayWidth, result.DisplayHeight)},
					{"Rotation", strconv.Itoa(result.RotationDegrees)},
					{"Aspect ratio", fmt.Sprintf("%s (%.4f)", result.AspectRatio, result.AspectRatioDecimal)},
				},
			}.render())
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

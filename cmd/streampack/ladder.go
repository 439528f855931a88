package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"streampack/internal/ladder"
	"streampack/internal/probe"
)

type ladderOutput struct {
	Policy          string         `json:"policy"`
	DisplayWidth    int            `json:"display_width"`
	DisplayHeight   int            `json:"display_height"`
	RotationDegrees int            `json:"rotation"`
	Representations []ladderOutRep `json:"representations"`
}

type ladderOutRep struct {
	Tier         int   `json:"tier"`
	Width        int   `json:"width"`
	Height       int   `json:"height"`
	VideoBitrate int64 `json:"video_bitrate"`
	AudioBitrate int64 `json:"audio_bitrate"`
}

func newLadderCommand(ctx *commandContext) *cobra.Command {
	var rotation int
	var policyName string
	var fromFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ladder [<width> <height>]",
		Short: "Preview the rendition ladder for a source geometry",
		Long: "Preview the rendition ladder for a source geometry.\n\n" +
			"Width and height are the stored (physical) dimensions; --rotation applies a\n" +
			"display rotation the same way a rotation descriptor in the file would.\n" +
			"Use --file to probe a video instead.",
		Args: func(cmd *cobra.Command, args []string) error {
			if fromFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy, err := ladder.FromConfig(cfg.Ladder)
			if err != nil {
				return err
			}
			if policyName != "" {
				override := cfg.Ladder
				override.Policy = policyName
				override.Tiers = nil
				if policy, err = ladder.FromConfig(override); err != nil {
					return err
				}
			}

			var props probe.VideoProperties
			if fromFile != "" {
				props, err = probe.New(cfg.FFprobeBinary(), ctx.commandLogger(cmd)).Probe(cmd.Context(), fromFile)
			} else {
				props, err = propsFromArgs(args, rotation)
			}
			if err != nil {
				return err
			}

			reps := policy.Generate(props.DisplayWidth, props.DisplayHeight, props.AspectRatio())
			reps = policy.ForRotation(props.RotationDegrees, reps)
			result := ladderOutput{
				Policy:          policy.String(),
				DisplayWidth:    props.DisplayWidth,
				DisplayHeight:   props.DisplayHeight,
				RotationDegrees: props.RotationDegrees,
				Representations: make([]ladderOutRep, 0, len(reps)),
			}
			for _, rep := range reps {
				result.Representations = append(result.Representations, ladderOutRep(rep))
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			rows := make([][]string, 0, len(reps))
			for _, rep := range reps {
				tier := strconv.Itoa(rep.Tier)
				if rep.Tier == 0 {
					tier = "native"
				}
				rows = append(rows, []string{
					tier,
					rep.Size(),
					formatBitrate(rep.VideoBitrate),
					formatBitrate(rep.AudioBitrate),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, tableSpec{
				title:   fmt.Sprintf("%s  %dx%d rot %d", result.Policy, result.DisplayWidth, result.DisplayHeight, result.RotationDegrees),
				headers: []string{"Tier", "Size", "Video", "Audio"},
				aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight},
				rows:    rows,
			}.render())
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&rotation, "rotation", "r", 0, "Display rotation in degrees")
	cmd.Flags().StringVarP(&policyName, "policy", "p", "", "Ladder policy (basic or extended); defaults to ladder.policy")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Probe this video for its geometry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func propsFromArgs(args []string, rotation int) (probe.VideoProperties, error) {
	width, err := strconv.Atoi(args[0])
	if err != nil {
		return probe.VideoProperties{}, fmt.Errorf("invalid width %q", args[0])
	}
	height, err := strconv.Atoi(args[1])
	if err != nil {
		return probe.VideoProperties{}, fmt.Errorf("invalid height %q", args[1])
	}
	return probe.NewVideoProperties(width, height, rotation)
}

// formatBitrate renders bits per second with SI units, e.g. "3 Mbps".
func formatBitrate(bps int64) string {
	value, prefix := humanize.ComputeSI(float64(bps))
	return humanize.FtoaWithDigits(value, 2) + " " + prefix + "bps"
}

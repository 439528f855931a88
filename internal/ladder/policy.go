package ladder

import (
	"fmt"
	"slices"
	"strings"

	"streampack/internal/config"
)

const (
	// PolicyBasic is the four tier ladder.
	PolicyBasic = "basic"
	// PolicyExtended is the eight tier ladder with a configurable floor.
	PolicyExtended = "extended"

	defaultFallbackFloor  = 200_000
	defaultBitsPerPixel   = 1.0
	defaultRotatedTierCap = 2
	highAudioBitrate      = 128_000
	standardAudioBitrate  = 96_000
	highAudioMinDimension = 720
	defaultExtendedFloor  = 360
)

// Bitrate is a video/audio pair in bits per second.
type Bitrate struct {
	Video int64
	Audio int64
}

// Policy is one explicit, versioned ladder configuration.
type Policy struct {
	Name    string
	Version int
	// Tiers are candidate sizes for the constrained dimension, any order.
	Tiers []int
	// Floor drops tiers below this value. Zero keeps every tier.
	Floor    int
	Bitrates map[int]Bitrate
	// FallbackFloor and FallbackBitsPerPixel size bitrates for tiers missing
	// from the table, including the native-resolution fallback.
	FallbackFloor        int64
	FallbackBitsPerPixel float64
	// LimitRotated keeps only the top RotatedTierLimit entries for sources
	// carrying a rotation descriptor.
	LimitRotated     bool
	RotatedTierLimit int
}

var basicBitrates = map[int]Bitrate{
	1080: {Video: 3_000_000, Audio: 128_000},
	720:  {Video: 1_500_000, Audio: 128_000},
	540:  {Video: 800_000, Audio: 96_000},
	360:  {Video: 400_000, Audio: 96_000},
}

var extendedBitrates = map[int]Bitrate{
	2160: {Video: 12_000_000, Audio: 192_000},
	1440: {Video: 6_000_000, Audio: 192_000},
	1080: {Video: 3_000_000, Audio: 128_000},
	720:  {Video: 1_500_000, Audio: 128_000},
	480:  {Video: 600_000, Audio: 96_000},
	360:  {Video: 400_000, Audio: 96_000},
	240:  {Video: 250_000, Audio: 64_000},
	144:  {Video: 150_000, Audio: 64_000},
}

// Basic returns the four tier policy.
func Basic() Policy {
	return Policy{
		Name:                 PolicyBasic,
		Version:              1,
		Tiers:                []int{1080, 720, 540, 360},
		Bitrates:             cloneTable(basicBitrates),
		FallbackFloor:        defaultFallbackFloor,
		FallbackBitsPerPixel: defaultBitsPerPixel,
		RotatedTierLimit:     defaultRotatedTierCap,
	}
}

// Extended returns the eight tier policy with the default floor of 360.
func Extended() Policy {
	return Policy{
		Name:                 PolicyExtended,
		Version:              2,
		Tiers:                []int{2160, 1440, 1080, 720, 480, 360, 240, 144},
		Floor:                defaultExtendedFloor,
		Bitrates:             cloneTable(extendedBitrates),
		FallbackFloor:        defaultFallbackFloor,
		FallbackBitsPerPixel: defaultBitsPerPixel,
		RotatedTierLimit:     defaultRotatedTierCap,
	}
}

// Lookup returns the named policy.
func Lookup(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyBasic:
		return Basic(), nil
	case PolicyExtended, "":
		return Extended(), nil
	default:
		return Policy{}, fmt.Errorf("unknown ladder policy %q", name)
	}
}

// FromConfig resolves the configured policy and applies overrides.
func FromConfig(cfg config.Ladder) (Policy, error) {
	policy, err := Lookup(cfg.Policy)
	if err != nil {
		return Policy{}, err
	}
	if len(cfg.Tiers) > 0 {
		policy.Tiers = slices.Clone(cfg.Tiers)
	}
	if policy.Name == PolicyExtended || cfg.Floor > 0 {
		policy.Floor = cfg.Floor
	}
	policy.LimitRotated = cfg.LimitRotated
	if cfg.RotatedTierLimit > 0 {
		policy.RotatedTierLimit = cfg.RotatedTierLimit
	}
	return policy, nil
}

// String identifies the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("%s/v%d", p.Name, p.Version)
}

func (p Policy) eligibleTiers(constrained int) []int {
	tiers := make([]int, 0, len(p.Tiers))
	for _, tier := range p.Tiers {
		if tier <= 0 || tier < p.Floor || tier > constrained {
			continue
		}
		if slices.Contains(tiers, tier) {
			continue
		}
		tiers = append(tiers, tier)
	}
	slices.Sort(tiers)
	slices.Reverse(tiers)
	return tiers
}

func (p Policy) bitrateFor(tier, width, height int) Bitrate {
	if rate, ok := p.Bitrates[tier]; ok && tier > 0 {
		return rate
	}
	perPixel := p.FallbackBitsPerPixel
	if perPixel <= 0 {
		perPixel = defaultBitsPerPixel
	}
	video := int64(perPixel * float64(width) * float64(height))
	if video < p.FallbackFloor {
		video = p.FallbackFloor
	}
	audio := int64(standardAudioBitrate)
	if min(width, height) >= highAudioMinDimension {
		audio = highAudioBitrate
	}
	return Bitrate{Video: video, Audio: audio}
}

func cloneTable(in map[int]Bitrate) map[int]Bitrate {
	out := make(map[int]Bitrate, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

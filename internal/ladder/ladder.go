package ladder

import (
	"fmt"
	"math/big"
	"strings"
)

// Representation is one rendition of the ladder. Tier is zero for the
// native-resolution fallback.
type Representation struct {
	Tier         int
	Width        int
	Height       int
	VideoBitrate int64
	AudioBitrate int64
}

// String renders "WxH @ Nkbps".
func (r Representation) String() string {
	return fmt.Sprintf("%dx%d @ %dkbps", r.Width, r.Height, r.VideoBitrate/1000)
}

// Size renders "WxH".
func (r Representation) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Ladder is ordered highest quality first.
type Ladder []Representation

// String joins entries with ", ".
func (l Ladder) String() string {
	parts := make([]string, len(l))
	for i, rep := range l {
		parts[i] = rep.String()
	}
	return strings.Join(parts, ", ")
}

// Generate builds the ladder for a source with the given display geometry.
// A nil aspect is derived from the dimensions. Dimensions must be positive.
func (p Policy) Generate(displayWidth, displayHeight int, aspect *big.Rat) Ladder {
	if displayWidth <= 0 || displayHeight <= 0 {
		return nil
	}
	if aspect == nil || aspect.Sign() <= 0 {
		aspect = big.NewRat(int64(displayWidth), int64(displayHeight))
	}

	portrait := displayHeight > displayWidth
	ratio := new(big.Rat).Set(aspect)
	constrained := displayHeight
	if portrait {
		ratio.Inv(ratio)
		constrained = displayWidth
	}

	tiers := p.eligibleTiers(constrained)
	native := len(tiers) == 0
	if native {
		tiers = []int{constrained}
	}

	out := make(Ladder, 0, len(tiers))
	for _, tier := range tiers {
		primary, other := fitEven(tier, ratio)
		width, height := other, primary
		if portrait {
			width, height = primary, other
		}
		if native {
			tier = 0
		}
		rate := p.bitrateFor(tier, width, height)
		out = append(out, Representation{
			Tier:         tier,
			Width:        width,
			Height:       height,
			VideoBitrate: rate.Video,
			AudioBitrate: rate.Audio,
		})
	}
	return out
}

// ForRotation applies the rotated-source tier limit when enabled.
func (p Policy) ForRotation(rotation int, l Ladder) Ladder {
	if !p.LimitRotated || rotation%360 == 0 {
		return l
	}
	limit := p.RotatedTierLimit
	if limit <= 0 {
		limit = defaultRotatedTierCap
	}
	if len(l) <= limit {
		return l
	}
	return l[:limit]
}

// fitEven sizes the constrained dimension tier and the opposite dimension
// tier*ratio so both are even. The opposite side is rounded first, the
// constrained side is recomputed from it and bumped if odd, and the opposite
// side is finally recomputed from the settled constrained side.
func fitEven(tier int, ratio *big.Rat) (primary, other int) {
	other = evenUp(floorMul(tier, ratio))
	primary = floorDiv(other, ratio)
	if primary%2 != 0 {
		primary++
	}
	if primary <= 0 {
		primary = evenUp(tier)
	}
	other = evenUp(floorMul(primary, ratio))
	return primary, other
}

func floorMul(n int, r *big.Rat) int {
	num := new(big.Int).Mul(big.NewInt(int64(n)), r.Num())
	return int(num.Quo(num, r.Denom()).Int64())
}

func floorDiv(n int, r *big.Rat) int {
	num := new(big.Int).Mul(big.NewInt(int64(n)), r.Denom())
	return int(num.Quo(num, r.Num()).Int64())
}

func evenUp(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// Package ladder builds aspect-preserving rendition ladders.
//
// A Policy names an ordered set of quality tiers, a bitrate table keyed by
// tier, and the rotated-source tier limit. Generate maps display geometry to
// a Ladder whose entries are even-sized and within a pixel or two of the
// source aspect ratio, highest tier first. Landscape sources use height tiers;
// portrait sources use width tiers.
//
// Two policies ship: "basic" (version 1, four tiers) and "extended"
// (version 2, eight tiers with a configurable floor).
package ladder

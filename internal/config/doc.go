// Package config loads, normalizes, and validates streampack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: the uploads root, ffmpeg/ffprobe binaries, the
// rendition ladder policy, worker limits, the job store backend, and optional
// event sinks.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

// Package main hosts the streampack CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon (serve), packages single files
// without it (process), inspects sources (probe, ladder), reads job records
// straight from the configured store (jobs, storage), checks the environment
// (doctor), and scaffolds configuration. It centralizes configuration
// resolution and logger setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

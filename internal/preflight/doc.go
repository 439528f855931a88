// Package preflight provides readiness checks for the filesystem paths,
// binaries, and event backends streampack depends on.
//
// These checks run in three contexts:
//   - The daemon calls RunAll at startup and logs failures.
//   - The upload handler calls CheckFreeSpace before accepting a file.
//   - The CLI "streampack doctor" command renders every result.
//
// Each optional check is gated by its config toggle; disabled features are skipped.
package preflight

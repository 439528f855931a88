// Package logs reads the daemon log and per-job processing logs for the CLI.
//
// Readers only hand back complete lines. A line still being written stays in
// the file until its newline lands, so followers never print half a record.
package logs

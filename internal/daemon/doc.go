// Package daemon coordinates the long-running streampack process.
//
// It wires configuration, the job store, the event publisher, the workflow
// manager, and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances. On start the daemon fails jobs a previous
// process left in flight, reclaims stale temp files under the uploads root,
// and only then begins claiming work.
//
// Keep orchestration logic here: pipeline steps live in their respective
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon

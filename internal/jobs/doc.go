// Package jobs owns the persisted job record and its state machine.
//
// A Job moves pending -> processing -> done|error and never leaves a
// terminal state. Store persists the full record on every transition with a
// guard on the previous status, so a concurrent reader never observes a torn
// record and a stale writer cannot overwrite a newer state.
//
// Two backends are provided:
//   - FileStore: <uploads>/<id>/meta.json, written temp-file-then-rename under
//     a per-job flock
//   - SQLiteStore: a jobs table in a modernc.org/sqlite database
//
// Both keep package output in a per-job directory returned by Dir.
package jobs

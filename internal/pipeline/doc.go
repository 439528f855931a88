// Package pipeline sequences the packaging of one job.
//
// Orchestrator.Run drives a processing job through
// preprocess -> probe -> ladder -> thumbnail + DASH package, appending
// progress to the job's processing.log before and after every external call.
// The job ends done with artifact references, or error with the external
// tool's diagnostic. Temporary preprocessing output is removed either way.
//
// Failure classes:
//   - probe.ErrProbe: source unreadable or without video
//   - ErrPackaging: ffmpeg failed producing the thumbnail or package
//   - anything else: unexpected, reported with its error text
//
// Preprocessing failures never surface here; see package preprocess.
package pipeline

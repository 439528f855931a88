// Package workflow runs jobs in the background with a bounded worker pool.
//
// Manager starts a fixed number of workers. Each worker polls the job store
// for the oldest pending job, claims it under the manager lock (persisting
// pending -> processing), and hands it to a Runner. Notify wakes idle workers
// early after an upload. Running jobs are detached from the manager context:
// Stop stops claiming new work and waits for in-flight jobs to finish.
//
// Recover marks jobs a previous daemon left processing as failed, since their
// external processes did not survive the restart.
package workflow

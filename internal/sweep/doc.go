// Package sweep schedules the retention jobs: expiring join requests that
// sat pending past their TTL and purging decided records past theirs. Jobs
// run on a shared cron schedule; a zero TTL disables the matching job.
package sweep

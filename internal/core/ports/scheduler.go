package ports

import "time"

// SchedulerService runs a single job on a cron expression with seconds.
// A tick that is still running when the next one fires is skipped.
type SchedulerService interface {
	Start()
	Stop()
	Schedule(expression string, job func()) error
	NextRun() time.Time
}

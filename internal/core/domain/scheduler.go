package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the schedule entry.
	ID string

	// TaskName is the task enqueued when the entry fires.
	TaskName string

	// Args is the JSON-encoded argument object passed to the task.
	Args []byte

	// Repeat is a fixed period. Ignored when Cron is set.
	Repeat Repeat

	// Cron is a cron expression, e.g. "0 3 * * 0" for Sunday 03:00.
	Cron string

	// LastRun is when the entry last fired.
	LastRun time.Time

	// NextRun is when the entry should fire next.
	NextRun time.Time

	// LastError contains the last enqueue error, if any.
	LastError string

	// Enabled indicates whether the entry is active.
	Enabled bool
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// RankingCron is when authority ranking runs.
	RankingCron string

	// TimelineRefresh and TimelineAlerts are the timeline schedules.
	TimelineRefresh Repeat
	TimelineAlerts  Repeat
}

// DefaultSchedulerConfig returns the default schedule set.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:         true,
		RankingCron:     "0 3 * * 0",
		TimelineRefresh: RepeatHourly,
		TimelineAlerts:  RepeatDaily,
	}
}

// Schedule entry IDs for built-in schedules.
const (
	ScheduleIDRanking         = "rank-works"
	ScheduleIDTimelineRefresh = "timelines-refresh"
	ScheduleIDTimelineAlerts  = "timelines-alerts"
)

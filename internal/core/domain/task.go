package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task names.
const (
	TaskIngestorCheckForUpdates = "ingestor.check_for_updates"
	TaskIngestorUpdateDocument  = "ingestor.update_document"
	TaskIngestorDeleteDocument  = "ingestor.delete_document"
	TaskExtractCitations        = "documents.extract_citations"
	TaskUpdateWorkLanguages     = "documents.update_work_languages"
	TaskRefreshEmbeddings       = "documents.refresh_embeddings"
	TaskReindexDocument         = "search.reindex_document"
	TaskUnindexDocument         = "search.unindex_document"
	TaskRankWorks               = "ranking.rank_works"
	TaskRefreshTimelines        = "timelines.refresh"
	TaskSendTimelineAlerts      = "timelines.send_alerts"
)

// Repeat is a periodic schedule for a task.
type Repeat string

// Repeat schedules.
const (
	RepeatNone   Repeat = ""
	RepeatHourly Repeat = "hourly"
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
)

// Interval returns the period of a fixed repeat, or 0 for none.
func (r Repeat) Interval() time.Duration {
	switch r {
	case RepeatHourly:
		return time.Hour
	case RepeatDaily:
		return 24 * time.Hour
	case RepeatWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Task is a unit of background work addressed by name and arguments.
type Task struct {
	// ID is a uuid assigned on enqueue.
	ID string

	Name string

	// Args is the JSON-encoded argument object.
	Args json.RawMessage

	// Signature is Name plus the canonical JSON of Args.
	Signature string

	// RunAt is when the task becomes eligible to run.
	RunAt time.Time

	// Attempt counts executions so far, starting at 0.
	Attempt int

	MaxAttempts int

	CreatedAt time.Time
}

// TaskOptions control how a task is enqueued.
type TaskOptions struct {
	// RemoveExisting replaces any pending task with the same signature.
	RemoveExisting bool

	// Delay postpones the first run.
	Delay time.Duration

	// MaxAttempts overrides the default retry budget when > 0.
	MaxAttempts int
}

// DefaultMaxAttempts is the retry budget for a task.
const DefaultMaxAttempts = 5

// Back-off parameters.
const (
	BackoffBase   = 2 * time.Second
	BackoffFactor = 2
	BackoffCap    = time.Hour
)

// NewTask builds a task with a canonical signature. args may be nil.
func NewTask(name string, args any) (Task, error) {
	raw, err := CanonicalJSON(args)
	if err != nil {
		return Task{}, fmt.Errorf("encoding args for %s: %w", name, err)
	}
	return Task{
		Name:        name,
		Args:        raw,
		Signature:   name + ":" + string(raw),
		MaxAttempts: DefaultMaxAttempts,
	}, nil
}

// DecodeArgs unmarshals the task arguments into v.
func (t Task) DecodeArgs(v any) error {
	if len(t.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Args, v); err != nil {
		return fmt.Errorf("%w: task %s args: %v", ErrInvalidInput, t.Name, err)
	}
	return nil
}

// CanRetry returns true if another attempt is allowed after the current one failed.
func (t Task) CanRetry() bool {
	max := t.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	return t.Attempt+1 < max
}

// Backoff returns the delay before retry number attempt (1-based).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := BackoffBase
	for i := 1; i < attempt; i++ {
		d *= BackoffFactor
		if d >= BackoffCap {
			return BackoffCap
		}
	}
	return d
}

// CanonicalJSON encodes v with object keys sorted at every level.
func CanonicalJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// round-trip through interface{} so maps (which encode sorted) replace struct field order
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// Name is the task name.
	Name string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// Attempt is the attempt number that produced this result.
	Attempt int
}

// Task argument shapes.
type (
	// IngestorTaskArgs addresses an ingestor and optionally one upstream id.
	IngestorTaskArgs struct {
		IngestorID int64  `json:"ingestor_id"`
		UpstreamID string `json:"upstream_id,omitempty"`
	}

	// DocumentTaskArgs addresses a document.
	DocumentTaskArgs struct {
		DocumentID int64 `json:"document_id"`
	}

	// UnindexTaskArgs addresses an index entry for a deleted document.
	UnindexTaskArgs struct {
		DocumentID int64  `json:"document_id"`
		WorkID     int64  `json:"work_id"`
		Language   string `json:"language"`
	}

	// WorkTaskArgs addresses a work.
	WorkTaskArgs struct {
		WorkID int64 `json:"work_id"`
	}
)

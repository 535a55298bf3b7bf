package vo

import "time"

// JobEventKind classifies lifecycle events on the optional event stream.
type JobEventKind string

const (
	JobEventSubmitted JobEventKind = "submitted"
	JobEventCompleted JobEventKind = "completed"
	JobEventFailed    JobEventKind = "failed"
)

// JobEvent is one lifecycle event published to kafka for downstream
// consumers; the pipeline itself never reads these back.
type JobEvent struct {
	Kind          JobEventKind `json:"kind"`
	JobID         string       `json:"job_id"`
	WorkerID      string       `json:"worker_id,omitempty"`
	SegmentsCount int          `json:"segments_count,omitempty"`
	ElapsedSecs   float64      `json:"elapsed_seconds,omitempty"`
	Error         string       `json:"error,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

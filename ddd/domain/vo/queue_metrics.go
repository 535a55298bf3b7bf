package vo

import "time"

// QueueMetrics is the shared backlog counter document. Both fields move only
// via signed deltas and are floored at zero; concurrent read-modify-write
// updates may lose deltas, which is accepted because the value feeds a
// scaling heuristic, not a ledger.
type QueueMetrics struct {
	TotalMinutesPending float64   `json:"total_minutes_pending"`
	JobCount            int       `json:"job_count"`
	LastUpdated         time.Time `json:"last_updated"`
	Source              string    `json:"source,omitempty"`
}

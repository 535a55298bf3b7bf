package entity

import (
	"time"

	"transcription-service/ddd/domain/vo"
)

// WorkerRecord is the worker's heartbeat document in the object store, keyed
// workers/<worker_id>/status.json. Owned exclusively by the worker that wrote
// it; the autoscaler and monitors only read.
type WorkerRecord struct {
	WorkerID      string          `json:"worker_id"`
	Status        vo.WorkerStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	StoppedAt     *time.Time      `json:"stopped_at,omitempty"`
	LastHeartbeat time.Time       `json:"last_heartbeat"`
	JobsProcessed int             `json:"jobs_processed"`
	Model         string          `json:"model,omitempty"`
	GPUOptimized  bool            `json:"gpu_optimized"`
}

// StaleAfter reports whether the heartbeat is older than maxAge at now.
func (r *WorkerRecord) StaleAfter(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.LastHeartbeat) > maxAge
}

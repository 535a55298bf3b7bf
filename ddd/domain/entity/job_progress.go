package entity

import (
	"time"

	"transcription-service/ddd/domain/vo"
)

// JobProgress is the monitor-facing progress document, keyed
// progress/<job_id>/status.json and overwritten on every stage change.
type JobProgress struct {
	JobID          string        `json:"job_id"`
	Status         vo.JobStatus  `json:"status"`
	Message        string        `json:"message"`
	Percentage     int           `json:"percentage"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	ChunkInfo      *vo.ChunkInfo `json:"chunk_info,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

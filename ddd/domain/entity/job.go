package entity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"transcription-service/pkg/errno"
)

var s3PathPattern = regexp.MustCompile(`^s3://[a-zA-Z0-9._-]+/.+$`)

// Job is one audio transcription request as carried on the queue. Immutable
// once created; it is logically destroyed when its queue message is deleted.
type Job struct {
	JobID                    string    `json:"job_id"`
	S3InputPath              string    `json:"s3_input_path"`
	S3OutputPath             string    `json:"s3_output_path"`
	EstimatedDurationSeconds int       `json:"estimated_duration_seconds"`
	Priority                 int       `json:"priority"`
	RetryCount               int       `json:"retry_count"`
	SubmittedAt              time.Time `json:"submitted_at"`
}

// Validate checks the descriptor fields producers must fill.
func (j *Job) Validate() error {
	if j.JobID == "" {
		return errno.Classify(errno.ErrInvalidJob, fmt.Errorf("job_id is required"))
	}
	if !s3PathPattern.MatchString(j.S3InputPath) {
		return errno.Classify(errno.ErrInvalidJob, fmt.Errorf("invalid s3_input_path %q", j.S3InputPath))
	}
	if !s3PathPattern.MatchString(j.S3OutputPath) {
		return errno.Classify(errno.ErrInvalidJob, fmt.Errorf("invalid s3_output_path %q", j.S3OutputPath))
	}
	if j.EstimatedDurationSeconds <= 0 {
		return errno.Classify(errno.ErrInvalidJob, fmt.Errorf("estimated_duration_seconds must be positive"))
	}
	if j.Priority < 1 || j.Priority > 5 {
		return errno.Classify(errno.ErrInvalidJob, fmt.Errorf("priority %d out of range 1-5", j.Priority))
	}
	return nil
}

// ParseJob decodes and validates a queue message body.
func ParseJob(body []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, errno.Classify(errno.ErrInvalidJob, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Marshal encodes the descriptor for the queue.
func (j *Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

package port

import (
	"context"

	"transcription-service/ddd/domain/entity"
)

// ProgressSink records a job's stage transitions for external monitors.
// Implementations enforce the job status transition rules and reject
// backward moves with errno.ErrInvalidTransition.
type ProgressSink interface {
	// Report publishes the current progress document and appends one line
	// to the job's detailed log.
	Report(ctx context.Context, p *entity.JobProgress) error

	// ReportError marks the job FAILED with the error message.
	ReportError(ctx context.Context, jobID string, cause error) error
}

package port

import (
	"context"

	"transcription-service/ddd/domain/vo"
)

// EventPublisher emits pipeline lifecycle events for downstream consumers.
// Publishing is best-effort: callers log failures and continue, the pipeline
// never blocks on the event stream.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, ev *vo.JobEvent) error
	PublishScaleEvent(ctx context.Context, res *vo.ScaleResult) error
	Close() error
}

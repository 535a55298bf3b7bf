package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// Producer submits transcription jobs: validate the descriptor, enqueue it,
// and add its estimated minutes to the shared backlog counter.
type Producer struct {
	queue   gateway.JobQueue
	metrics *MetricsStore
	events  port.EventPublisher // nil disables publishing
}

// NewProducer wires a job submitter.
func NewProducer(queue gateway.JobQueue, metrics *MetricsStore, events port.EventPublisher) *Producer {
	return &Producer{queue: queue, metrics: metrics, events: events}
}

// Submit validates and enqueues one job. A missing JobID is filled with a
// fresh UUID; SubmittedAt is stamped here. The metrics update happens after
// the enqueue succeeds so a failed send never inflates the backlog.
func (p *Producer) Submit(ctx context.Context, job *entity.Job) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if job.Priority == 0 {
		job.Priority = 3
	}
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Marshal()
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return errno.Classify(errno.ErrTransientInfra, err)
	}

	if err := p.metrics.AddJob(ctx, job.EstimatedDurationSeconds); err != nil {
		logger.Warn("metrics add failed after enqueue", map[string]interface{}{
			"job_id": job.JobID,
			"error":  err.Error(),
		})
	}

	if p.events != nil {
		ev := &vo.JobEvent{
			Kind:       vo.JobEventSubmitted,
			JobID:      job.JobID,
			OccurredAt: time.Now().UTC(),
		}
		if perr := p.events.PublishJobEvent(ctx, ev); perr != nil {
			logger.Warn("submit event publish failed", map[string]interface{}{"error": perr.Error()})
		}
	}

	logger.Info("job submitted", map[string]interface{}{
		"job_id":            job.JobID,
		"estimated_minutes": float64(job.EstimatedDurationSeconds) / 60.0,
		"priority":          job.Priority,
	})
	return nil
}

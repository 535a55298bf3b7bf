package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/infrastructure/queue"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/pkg/errno"
)

func TestProducerSubmitEnqueuesAndCounts(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemQueue(time.Hour)
	metrics := NewMetricsStore(storage.NewMemStore(), "queue-stats.json", "producer")
	p := NewProducer(q, metrics, nil)

	job := &entity.Job{
		S3InputPath:              "s3://audio-bucket/talk.mp3",
		S3OutputPath:             "s3://transcript-bucket/talk.json",
		EstimatedDurationSeconds: 1200,
	}
	if err := p.Submit(ctx, job); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if job.JobID == "" {
		t.Fatal("Submit() did not assign a job id")
	}
	if job.Priority != 3 {
		t.Fatalf("default priority = %d, want 3", job.Priority)
	}
	if job.SubmittedAt.IsZero() {
		t.Fatal("Submit() did not stamp SubmittedAt")
	}

	depth, _ := q.ApproximateDepth(ctx)
	if depth != 1 {
		t.Fatalf("queue depth = %d, want 1", depth)
	}

	msg, _ := q.Receive(ctx, time.Second)
	parsed, err := entity.ParseJob(msg.Body)
	if err != nil {
		t.Fatalf("ParseJob() error = %v", err)
	}
	if parsed.JobID != job.JobID {
		t.Fatalf("queued job id = %s, want %s", parsed.JobID, job.JobID)
	}

	m := metrics.Get(ctx)
	if m.TotalMinutesPending != 20 || m.JobCount != 1 {
		t.Fatalf("metrics = %+v, want 20 minutes / 1 job", m)
	}
}

func TestProducerSubmitRejectsInvalidJob(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemQueue(time.Hour)
	metrics := NewMetricsStore(storage.NewMemStore(), "queue-stats.json", "producer")
	p := NewProducer(q, metrics, nil)

	err := p.Submit(ctx, &entity.Job{
		S3InputPath:              "not-a-uri",
		S3OutputPath:             "s3://transcript-bucket/x.json",
		EstimatedDurationSeconds: 60,
	})
	if !errors.Is(err, errno.ErrInvalidJob) {
		t.Fatalf("Submit() error = %v, want ErrInvalidJob class", err)
	}

	depth, _ := q.ApproximateDepth(ctx)
	if depth != 0 {
		t.Fatalf("invalid job was enqueued, depth = %d", depth)
	}
	if m := metrics.Get(ctx); m.JobCount != 0 {
		t.Fatalf("invalid job counted: %+v", m)
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/kafka"
)

// KafkaPublisher implements port.EventPublisher on the kafka event stream.
// Job events are keyed by job ID so per-job ordering survives partitioning;
// scale events share a single key to keep the run history ordered.
type KafkaPublisher struct {
	client     *kafka.Client
	jobTopic   string
	scaleTopic string
}

// NewKafkaPublisher wraps a connected kafka client.
func NewKafkaPublisher(client *kafka.Client, jobTopic, scaleTopic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, jobTopic: jobTopic, scaleTopic: scaleTopic}
}

// PublishJobEvent emits one job lifecycle event.
func (p *KafkaPublisher) PublishJobEvent(ctx context.Context, ev *vo.JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return p.client.Produce(ctx, p.jobTopic, []byte(ev.JobID), body)
}

// PublishScaleEvent emits one autoscaler run record.
func (p *KafkaPublisher) PublishScaleEvent(ctx context.Context, res *vo.ScaleResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal scale event: %w", err)
	}
	return p.client.Produce(ctx, p.scaleTopic, []byte("autoscaler"), body)
}

// Close shuts down the underlying writers.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

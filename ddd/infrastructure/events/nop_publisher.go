package events

import (
	"context"

	"transcription-service/ddd/domain/vo"
)

// NopPublisher discards all events; used when the event stream is disabled.
type NopPublisher struct{}

// NewNopPublisher returns the no-op publisher.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (*NopPublisher) PublishJobEvent(context.Context, *vo.JobEvent) error      { return nil }
func (*NopPublisher) PublishScaleEvent(context.Context, *vo.ScaleResult) error { return nil }
func (*NopPublisher) Close() error                                             { return nil }

package events

import (
	"context"
	"errors"

	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/vo"
)

// MultiPublisher fans events out to several publishers (kafka stream plus
// database archive). All publishers are attempted; errors are joined.
type MultiPublisher struct {
	publishers []port.EventPublisher
}

// NewMultiPublisher combines publishers; nil entries are skipped.
func NewMultiPublisher(publishers ...port.EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

func (m *MultiPublisher) PublishJobEvent(ctx context.Context, ev *vo.JobEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishJobEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) PublishScaleEvent(ctx context.Context, res *vo.ScaleResult) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishScaleEvent(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// MetricsStore maintains the shared queue backlog document in the object
// store. Producers add on submit, workers subtract on completion or failure,
// the autoscaler reads. Updates are read-modify-write without locking;
// a lost delta under contention skews the scaling heuristic briefly and
// self-corrects on the next update.
type MetricsStore struct {
	store  gateway.ObjectStore
	key    string
	source string
}

// NewMetricsStore binds the store to the metrics document key. source names
// the writing component and is stamped into the document.
func NewMetricsStore(store gateway.ObjectStore, key, source string) *MetricsStore {
	return &MetricsStore{store: store, key: key, source: source}
}

// Get reads the current metrics document. A missing or unreadable document
// yields the zero value, never an error: absence means an empty queue.
func (m *MetricsStore) Get(ctx context.Context) vo.QueueMetrics {
	body, err := m.store.GetObject(ctx, m.key)
	if err != nil {
		if !errno.IsNotFound(err) {
			logger.Warn("metrics document unreadable, treating as empty", map[string]interface{}{
				"key":   m.key,
				"error": err.Error(),
			})
		}
		return vo.QueueMetrics{}
	}
	var metrics vo.QueueMetrics
	if err := json.Unmarshal(body, &metrics); err != nil {
		logger.Warn("metrics document corrupt, treating as empty", map[string]interface{}{
			"key":   m.key,
			"error": err.Error(),
		})
		return vo.QueueMetrics{}
	}
	return metrics
}

// Update applies signed deltas to the document and writes it back. Both
// counters are floored at zero so disagreeing decrements can never push the
// backlog negative.
func (m *MetricsStore) Update(ctx context.Context, minutesDelta float64, jobDelta int) (vo.QueueMetrics, error) {
	metrics := m.Get(ctx)

	metrics.TotalMinutesPending += minutesDelta
	if metrics.TotalMinutesPending < 0 {
		metrics.TotalMinutesPending = 0
	}
	metrics.JobCount += jobDelta
	if metrics.JobCount < 0 {
		metrics.JobCount = 0
	}
	metrics.LastUpdated = time.Now().UTC()
	metrics.Source = m.source

	if err := m.put(ctx, metrics); err != nil {
		return metrics, err
	}
	logger.Debug("queue metrics updated", map[string]interface{}{
		"minutes_delta":   minutesDelta,
		"job_delta":       jobDelta,
		"pending_minutes": metrics.TotalMinutesPending,
		"job_count":       metrics.JobCount,
	})
	return metrics, nil
}

// Reset overwrites the document with zeroes; an operator escape hatch for
// when accumulated drift has detached the counters from reality.
func (m *MetricsStore) Reset(ctx context.Context) error {
	return m.put(ctx, vo.QueueMetrics{
		LastUpdated: time.Now().UTC(),
		Source:      m.source,
	})
}

// AddJob records a submitted job's estimated audio minutes.
func (m *MetricsStore) AddJob(ctx context.Context, estimatedSeconds int) error {
	_, err := m.Update(ctx, float64(estimatedSeconds)/60.0, 1)
	return err
}

// CompleteJob removes a finished job's estimated audio minutes.
func (m *MetricsStore) CompleteJob(ctx context.Context, estimatedSeconds int) error {
	_, err := m.Update(ctx, -float64(estimatedSeconds)/60.0, -1)
	return err
}

// RemoveJob removes a failed job's contribution; identical arithmetic to
// CompleteJob, kept separate so call sites read as what happened.
func (m *MetricsStore) RemoveJob(ctx context.Context, estimatedSeconds int) error {
	_, err := m.Update(ctx, -float64(estimatedSeconds)/60.0, -1)
	return err
}

func (m *MetricsStore) put(ctx context.Context, metrics vo.QueueMetrics) error {
	body, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal queue metrics: %w", err)
	}
	if err := m.store.PutObject(ctx, m.key, body, "application/json"); err != nil {
		return errno.Classify(errno.ErrTransientInfra, err)
	}
	return nil
}

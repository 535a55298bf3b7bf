package service

import (
	"context"
	"math"
	"sort"
	"time"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
)

// Autoscaler runs one sizing decision per invocation: read the backlog,
// compute a target fleet size, move at most the allowed step toward it.
// It is stateless between runs; all state lives in the metrics document
// and the fleet itself.
type Autoscaler struct {
	cfg     *config.AutoscalerConfig
	metrics *MetricsStore
	queue   gateway.JobQueue
	fleet   gateway.FleetAPI
	events  port.EventPublisher
	spec    gateway.LaunchSpec
}

// NewAutoscaler wires one decision loop. queue may be nil when no depth
// fallback is available; events may be nil to disable publishing.
func NewAutoscaler(cfg *config.AutoscalerConfig, metrics *MetricsStore, queue gateway.JobQueue, fleet gateway.FleetAPI, events port.EventPublisher, spec gateway.LaunchSpec) *Autoscaler {
	return &Autoscaler{
		cfg:     cfg,
		metrics: metrics,
		queue:   queue,
		fleet:   fleet,
		events:  events,
		spec:    spec,
	}
}

// CalculateNeededInstances converts the backlog into a target fleet size.
// The base demand is ceil(pendingMinutes / minutesPerInstanceHour). Above
// the scale-up threshold the fleet grows by at least one instance; below
// the scale-down threshold it shrinks by at most one per run; in between
// the current size is kept (hysteresis band). The result is clamped to
// [MinInstances, MaxInstances].
func (a *Autoscaler) CalculateNeededInstances(pendingMinutes float64, currentCount int) int {
	target := 0
	if pendingMinutes > 0 {
		target = int(math.Ceil(pendingMinutes / a.cfg.MinutesPerInstanceHour))
	}

	switch {
	case pendingMinutes > a.cfg.ScaleUpThreshold:
		if target < currentCount+1 {
			target = currentCount + 1
		}
	case pendingMinutes < a.cfg.ScaleDownThreshold && currentCount > 0:
		// Shed exactly one instance per run; dropping faster thrashes when
		// the backlog oscillates around the threshold.
		if target < currentCount-1 {
			target = currentCount - 1
		}
		if target > currentCount {
			target = currentCount
		}
	default:
		target = currentCount
	}

	if target < a.cfg.MinInstances {
		target = a.cfg.MinInstances
	}
	if target > a.cfg.MaxInstances {
		target = a.cfg.MaxInstances
	}
	return target
}

// Run performs one scaling pass and returns its decision record.
func (a *Autoscaler) Run(ctx context.Context) (*vo.ScaleResult, error) {
	pending, jobCount, source := a.readBacklog(ctx)

	running, err := a.fleet.ListRunning(ctx, a.cfg.FleetTag)
	if err != nil {
		return nil, err
	}
	current := len(running)
	target := a.CalculateNeededInstances(pending, current)

	result := &vo.ScaleResult{
		Action:           vo.ScaleActionNoChange,
		PendingMinutes:   pending,
		JobCount:         jobCount,
		CurrentInstances: current,
		TargetInstances:  target,
		MetricsSource:    source,
		DryRun:           a.cfg.DryRun,
		RanAt:            time.Now().UTC(),
	}

	switch {
	case target > current:
		result.Action = vo.ScaleActionUp
		if !a.cfg.DryRun {
			ids, lerr := a.fleet.Launch(ctx, target-current, a.spec)
			if lerr != nil {
				return nil, lerr
			}
			result.LaunchedIDs = ids
			result.InstancesLaunched = len(ids)
		} else {
			result.InstancesLaunched = target - current
		}
	case target < current:
		victims := a.pickNewest(running, current-target)
		result.Action = vo.ScaleActionDown
		result.TerminatedIDs = victims
		result.InstancesTerminated = len(victims)
		if !a.cfg.DryRun && len(victims) > 0 {
			if terr := a.fleet.Terminate(ctx, victims); terr != nil {
				return nil, terr
			}
		}
	}

	logger.Info("autoscaler run complete", map[string]interface{}{
		"action":            string(result.Action),
		"pending_minutes":   result.PendingMinutes,
		"job_count":         result.JobCount,
		"current_instances": result.CurrentInstances,
		"target_instances":  result.TargetInstances,
		"metrics_source":    result.MetricsSource,
		"dry_run":           result.DryRun,
	})

	if a.events != nil {
		if perr := a.events.PublishScaleEvent(ctx, result); perr != nil {
			logger.Warn("scale event publish failed", map[string]interface{}{"error": perr.Error()})
		}
	}
	return result, nil
}

// readBacklog prefers the metrics document; when it is empty but the queue
// holds messages, the document is stale or lost and depth times a per-job
// estimate stands in for it.
func (a *Autoscaler) readBacklog(ctx context.Context) (minutes float64, jobs int, source string) {
	m := a.metrics.Get(ctx)
	if m.TotalMinutesPending > 0 || m.JobCount > 0 {
		return m.TotalMinutesPending, m.JobCount, "metrics"
	}
	if a.queue == nil {
		return 0, 0, "metrics"
	}
	depth, err := a.queue.ApproximateDepth(ctx)
	if err != nil {
		logger.Warn("queue depth fallback failed", map[string]interface{}{"error": err.Error()})
		return 0, 0, "metrics"
	}
	if depth == 0 {
		return 0, 0, "metrics"
	}
	return float64(depth) * a.cfg.FallbackMinutesPerJob, int(depth), "queue_depth_fallback"
}

// pickNewest selects up to n instance IDs, newest launch first, so the
// longest-running instances (most likely mid-job) survive.
func (a *Autoscaler) pickNewest(running []gateway.Instance, n int) []string {
	if n <= 0 {
		return nil
	}
	sorted := make([]gateway.Instance, len(running))
	copy(sorted, running)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LaunchTime.After(sorted[j].LaunchTime)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]string, 0, n)
	for _, inst := range sorted[:n] {
		ids = append(ids, inst.ID)
	}
	return ids
}

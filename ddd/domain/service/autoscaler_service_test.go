package service

import (
	"context"
	"testing"
	"time"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/vo"
	"transcription-service/ddd/infrastructure/fleet"
	"transcription-service/ddd/infrastructure/queue"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/pkg/config"
)

func scalerConfig() *config.AutoscalerConfig {
	return &config.AutoscalerConfig{
		MinInstances:           0,
		MaxInstances:           10,
		MinutesPerInstanceHour: 60,
		ScaleUpThreshold:       30,
		ScaleDownThreshold:     10,
		FallbackMinutesPerJob:  5,
		FleetTag:               "whisper-worker",
		InstanceType:           "g4dn.xlarge",
	}
}

func TestCalculateNeededInstances(t *testing.T) {
	cfg := scalerConfig()
	a := NewAutoscaler(cfg, nil, nil, nil, nil, gateway.LaunchSpec{})

	cases := []struct {
		name    string
		pending float64
		current int
		want    int
	}{
		{"empty queue", 0, 0, 0},
		{"backlog above threshold from zero", 45, 0, 1},
		{"gentle scale down", 5, 3, 2},
		{"hysteresis band holds", 20, 2, 2},
		{"burst growth guaranteed", 90, 5, 6},
		{"ratio dominates burst", 600, 2, 10},
		{"clamped to max", 100000, 0, 10},
		{"empty queue drains fleet one at a time", 0, 4, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := a.CalculateNeededInstances(c.pending, c.current); got != c.want {
				t.Fatalf("CalculateNeededInstances(%v, %d) = %d, want %d", c.pending, c.current, got, c.want)
			}
		})
	}
}

func TestCalculateNeededInstancesNeverDropsMoreThanOne(t *testing.T) {
	cfg := scalerConfig()
	a := NewAutoscaler(cfg, nil, nil, nil, nil, gateway.LaunchSpec{})
	for current := 1; current <= 10; current++ {
		for _, pending := range []float64{0, 1, 5, 9.9} {
			if got := a.CalculateNeededInstances(pending, current); got < current-1 {
				t.Fatalf("CalculateNeededInstances(%v, %d) = %d, dropped more than one", pending, current, got)
			}
		}
	}
}

func TestCalculateNeededInstancesRespectsMin(t *testing.T) {
	cfg := scalerConfig()
	cfg.MinInstances = 2
	a := NewAutoscaler(cfg, nil, nil, nil, nil, gateway.LaunchSpec{})
	if got := a.CalculateNeededInstances(0, 0); got != 2 {
		t.Fatalf("CalculateNeededInstances(0, 0) with min=2 = %d, want 2", got)
	}
}

func TestAutoscalerRunScalesUp(t *testing.T) {
	ctx := context.Background()
	cfg := scalerConfig()
	store := storage.NewMemStore()
	metrics := NewMetricsStore(store, "queue-stats.json", "test")
	if err := metrics.AddJob(ctx, 45*60); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	f := fleet.NewDryRunFleet()

	a := NewAutoscaler(cfg, metrics, nil, f, nil, gateway.LaunchSpec{FleetTag: cfg.FleetTag, InstanceType: cfg.InstanceType})
	res, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Action != vo.ScaleActionUp {
		t.Fatalf("Action = %s, want scale_up", res.Action)
	}
	if res.TargetInstances != 1 || res.InstancesLaunched != 1 {
		t.Fatalf("result = %+v, want target 1, launched 1", res)
	}
	running, _ := f.ListRunning(ctx, cfg.FleetTag)
	if len(running) != 1 {
		t.Fatalf("fleet size = %d, want 1", len(running))
	}
	if res.MetricsSource != "metrics" {
		t.Fatalf("MetricsSource = %q, want metrics", res.MetricsSource)
	}
}

func TestAutoscalerRunTerminatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	cfg := scalerConfig()
	store := storage.NewMemStore()
	metrics := NewMetricsStore(store, "queue-stats.json", "test")
	if err := metrics.AddJob(ctx, 5*60); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f := fleet.NewDryRunFleet()
	f.Seed(gateway.Instance{ID: "i-old", State: "running", LaunchTime: base}, cfg.FleetTag)
	f.Seed(gateway.Instance{ID: "i-mid", State: "running", LaunchTime: base.Add(time.Hour)}, cfg.FleetTag)
	f.Seed(gateway.Instance{ID: "i-new", State: "running", LaunchTime: base.Add(2 * time.Hour)}, cfg.FleetTag)

	a := NewAutoscaler(cfg, metrics, nil, f, nil, gateway.LaunchSpec{FleetTag: cfg.FleetTag})
	res, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Action != vo.ScaleActionDown {
		t.Fatalf("Action = %s, want scale_down", res.Action)
	}
	if len(res.TerminatedIDs) != 1 || res.TerminatedIDs[0] != "i-new" {
		t.Fatalf("TerminatedIDs = %v, want [i-new]", res.TerminatedIDs)
	}
	running, _ := f.ListRunning(ctx, cfg.FleetTag)
	if len(running) != 2 {
		t.Fatalf("fleet size = %d, want 2", len(running))
	}
}

func TestAutoscalerRunNoChangeInsideHysteresis(t *testing.T) {
	ctx := context.Background()
	cfg := scalerConfig()
	store := storage.NewMemStore()
	metrics := NewMetricsStore(store, "queue-stats.json", "test")
	if err := metrics.AddJob(ctx, 20*60); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	f := fleet.NewDryRunFleet()
	f.Seed(gateway.Instance{ID: "i-1", State: "running", LaunchTime: time.Now()}, cfg.FleetTag)

	a := NewAutoscaler(cfg, metrics, nil, f, nil, gateway.LaunchSpec{FleetTag: cfg.FleetTag})
	res, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Action != vo.ScaleActionNoChange {
		t.Fatalf("Action = %s, want no_change", res.Action)
	}
	if len(f.Actions()) != 0 {
		t.Fatalf("fleet mutated: %+v", f.Actions())
	}
}

func TestAutoscalerQueueDepthFallback(t *testing.T) {
	ctx := context.Background()
	cfg := scalerConfig()
	metrics := NewMetricsStore(storage.NewMemStore(), "queue-stats.json", "test")

	q := queue.NewMemQueue(time.Hour)
	for i := 0; i < 8; i++ {
		if err := q.Send(ctx, []byte("job")); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	f := fleet.NewDryRunFleet()

	a := NewAutoscaler(cfg, metrics, q, f, nil, gateway.LaunchSpec{FleetTag: cfg.FleetTag})
	res, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.MetricsSource != "queue_depth_fallback" {
		t.Fatalf("MetricsSource = %q, want queue_depth_fallback", res.MetricsSource)
	}
	// 8 jobs x 5 fallback minutes = 40 pending minutes -> 1 + burst.
	if res.PendingMinutes != 40 || res.TargetInstances != 1 {
		t.Fatalf("result = %+v, want 40 pending / target 1", res)
	}
}

func TestAutoscalerDryRunLeavesFleetUntouched(t *testing.T) {
	ctx := context.Background()
	cfg := scalerConfig()
	cfg.DryRun = true
	metrics := NewMetricsStore(storage.NewMemStore(), "queue-stats.json", "test")
	if err := metrics.AddJob(ctx, 45*60); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	f := fleet.NewDryRunFleet()

	a := NewAutoscaler(cfg, metrics, nil, f, nil, gateway.LaunchSpec{FleetTag: cfg.FleetTag})
	res, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Action != vo.ScaleActionUp || !res.DryRun {
		t.Fatalf("result = %+v, want dry-run scale_up", res)
	}
	if len(f.Actions()) != 0 {
		t.Fatalf("dry run mutated the fleet: %+v", f.Actions())
	}
	running, _ := f.ListRunning(ctx, cfg.FleetTag)
	if len(running) != 0 {
		t.Fatalf("fleet size = %d, want 0", len(running))
	}
}

package fleet

import (
	"context"
	"strings"
	"testing"
	"time"

	"transcription-service/ddd/domain/gateway"
)

func TestDryRunFleetLaunchAndList(t *testing.T) {
	ctx := context.Background()
	f := NewDryRunFleet()

	spec := gateway.LaunchSpec{
		FleetTag:     "whisper-worker",
		InstanceType: "g4dn.xlarge",
		Bootstrap: gateway.BootstrapPayload{
			QueueKey: "transcription:jobs",
			Bucket:   "transcription-pipeline",
		},
	}
	ids, err := f.Launch(ctx, 3, spec)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("launched %d, want 3", len(ids))
	}

	running, err := f.ListRunning(ctx, "whisper-worker")
	if err != nil {
		t.Fatalf("ListRunning() error = %v", err)
	}
	if len(running) != 3 {
		t.Fatalf("running = %d, want 3", len(running))
	}

	// Instances under another tag are invisible.
	other, _ := f.ListRunning(ctx, "different-fleet")
	if len(other) != 0 {
		t.Fatalf("foreign tag sees %d instances", len(other))
	}
}

func TestDryRunFleetTerminateUnknownInstance(t *testing.T) {
	f := NewDryRunFleet()
	if err := f.Terminate(context.Background(), []string{"i-missing"}); err == nil {
		t.Fatal("Terminate() accepted an unknown instance")
	}
}

func TestDryRunFleetRecordsActions(t *testing.T) {
	ctx := context.Background()
	f := NewDryRunFleet()
	f.Seed(gateway.Instance{ID: "i-1", State: "running", LaunchTime: time.Now()}, "tag")

	if err := f.Terminate(ctx, []string{"i-1"}); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if err := f.RequestSelfTerminate(ctx, "i-2"); err != nil {
		t.Fatalf("RequestSelfTerminate() error = %v", err)
	}

	actions := f.Actions()
	if len(actions) != 2 || actions[0].Kind != "terminate" || actions[1].Kind != "self_terminate" {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestRenderUserData(t *testing.T) {
	payload := gateway.BootstrapPayload{
		QueueKey:  "transcription:jobs",
		Bucket:    "pipeline",
		Region:    "us-east-1",
		RedisAddr: "10.0.0.5:6379",
	}
	data := RenderUserData(payload)
	for _, want := range []string{"transcription:jobs", "pipeline", "10.0.0.5:6379"} {
		if !strings.Contains(data, want) {
			t.Fatalf("user data %q missing %q", data, want)
		}
	}
}

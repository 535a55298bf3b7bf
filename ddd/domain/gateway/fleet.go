package gateway

import (
	"context"
	"time"
)

// Instance describes one compute instance in the worker fleet.
type Instance struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	LaunchTime time.Time `json:"launch_time"`
	Type       string    `json:"type"`
}

// BootstrapPayload is baked into a new instance's startup data so the worker
// process it boots can find its queue and bucket without further coordination.
type BootstrapPayload struct {
	QueueKey  string `json:"queue_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	RedisAddr string `json:"redis_addr"`
}

// LaunchSpec carries the instance parameters for a scale-up.
type LaunchSpec struct {
	ImageID         string
	InstanceType    string
	SpotPrice       string
	SecurityGroupID string
	KeyName         string
	FleetTag        string
	Bootstrap       BootstrapPayload
}

// FleetAPI provisions and destroys preemptible compute instances. It is an
// external collaborator: the pipeline only consumes this surface.
type FleetAPI interface {
	Launch(ctx context.Context, count int, spec LaunchSpec) ([]string, error)
	Terminate(ctx context.Context, instanceIDs []string) error
	ListRunning(ctx context.Context, fleetTag string) ([]Instance, error)

	// RequestSelfTerminate asks the fleet to reclaim the instance the
	// caller is running on; used by the worker's idle shutdown.
	RequestSelfTerminate(ctx context.Context, instanceID string) error
}

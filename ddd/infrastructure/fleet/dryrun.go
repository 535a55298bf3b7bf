package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/pkg/logger"
)

// Action records one fleet mutation for inspection.
type Action struct {
	Kind        string    `json:"kind"` // launch, terminate, self_terminate
	InstanceIDs []string  `json:"instance_ids"`
	At          time.Time `json:"at"`
}

// DryRunFleet implements gateway.FleetAPI in memory. It stands in for a real
// cloud fleet in tests and local runs: launches create synthetic instances,
// terminations remove them, and every mutation is recorded.
type DryRunFleet struct {
	mu        sync.Mutex
	instances map[string]gateway.Instance
	tags      map[string]string
	actions   []Action
	now       func() time.Time
}

// NewDryRunFleet returns an empty fleet.
func NewDryRunFleet() *DryRunFleet {
	return &DryRunFleet{
		instances: make(map[string]gateway.Instance),
		tags:      make(map[string]string),
		now:       time.Now,
	}
}

// SetClock overrides the fleet's clock; test hook for launch-time ordering.
func (f *DryRunFleet) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Seed registers a pre-existing instance under a fleet tag.
func (f *DryRunFleet) Seed(inst gateway.Instance, fleetTag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = inst
	f.tags[inst.ID] = fleetTag
}

// Launch creates count synthetic running instances under the launch tag.
func (f *DryRunFleet) Launch(_ context.Context, count int, spec gateway.LaunchSpec) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := "i-" + uuid.NewString()[:17]
		f.instances[id] = gateway.Instance{
			ID:         id,
			State:      "running",
			LaunchTime: now,
			Type:       spec.InstanceType,
		}
		f.tags[id] = spec.FleetTag
		ids = append(ids, id)
	}
	f.actions = append(f.actions, Action{Kind: "launch", InstanceIDs: ids, At: now})
	logger.Info("dry-run fleet launch", map[string]interface{}{
		"count":     count,
		"fleet_tag": spec.FleetTag,
		"user_data": RenderUserData(spec.Bootstrap),
	})
	return ids, nil
}

// Terminate removes the named instances.
func (f *DryRunFleet) Terminate(_ context.Context, instanceIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range instanceIDs {
		if _, ok := f.instances[id]; !ok {
			return fmt.Errorf("unknown instance %s", id)
		}
	}
	for _, id := range instanceIDs {
		delete(f.instances, id)
		delete(f.tags, id)
	}
	f.actions = append(f.actions, Action{Kind: "terminate", InstanceIDs: instanceIDs, At: f.now()})
	return nil
}

// ListRunning returns instances carrying fleetTag.
func (f *DryRunFleet) ListRunning(_ context.Context, fleetTag string) ([]gateway.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.Instance
	for id, inst := range f.instances {
		if f.tags[id] == fleetTag && inst.State == "running" {
			out = append(out, inst)
		}
	}
	return out, nil
}

// RequestSelfTerminate removes the caller's instance.
func (f *DryRunFleet) RequestSelfTerminate(_ context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, instanceID)
	delete(f.tags, instanceID)
	f.actions = append(f.actions, Action{Kind: "self_terminate", InstanceIDs: []string{instanceID}, At: f.now()})
	return nil
}

// Actions returns a copy of the recorded mutations.
func (f *DryRunFleet) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// RenderUserData encodes the bootstrap payload handed to new instances so
// the worker process they boot can find its queue and bucket.
func RenderUserData(p gateway.BootstrapPayload) string {
	body, _ := json.Marshal(p)
	return string(body)
}

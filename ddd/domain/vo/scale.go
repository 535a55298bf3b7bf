package vo

import "time"

// ScaleAction is the decision taken by one autoscaler run.
type ScaleAction string

const (
	ScaleActionUp       ScaleAction = "scale_up"
	ScaleActionDown     ScaleAction = "scale_down"
	ScaleActionNoChange ScaleAction = "no_change"
)

// ScaleResult is the JSON record emitted after every autoscaler run; it is
// the component's only externally visible output.
type ScaleResult struct {
	Action              ScaleAction `json:"action"`
	PendingMinutes      float64     `json:"pending_minutes"`
	JobCount            int         `json:"job_count"`
	CurrentInstances    int         `json:"current_instances"`
	TargetInstances     int         `json:"target_instances"`
	InstancesLaunched   int         `json:"instances_launched,omitempty"`
	LaunchedIDs         []string    `json:"launched_ids,omitempty"`
	InstancesTerminated int         `json:"instances_terminated,omitempty"`
	TerminatedIDs       []string    `json:"terminated_ids,omitempty"`
	MetricsSource       string      `json:"metrics_source,omitempty"`
	DryRun              bool        `json:"dry_run,omitempty"`
	RanAt               time.Time   `json:"ran_at"`
}

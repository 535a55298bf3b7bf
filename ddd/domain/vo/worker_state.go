package vo

// WorkerState is the lifecycle state of one worker process.
type WorkerState string

const (
	WorkerStateStarting       WorkerState = "STARTING"
	WorkerStatePolling        WorkerState = "POLLING"
	WorkerStateClaimed        WorkerState = "CLAIMED"
	WorkerStateProcessing     WorkerState = "PROCESSING"
	WorkerStateAcking         WorkerState = "ACKING"
	WorkerStateIdleShutdown   WorkerState = "IDLE_SHUTDOWN"
	WorkerStateSignalShutdown WorkerState = "SIGNAL_SHUTDOWN"
	WorkerStateStopped        WorkerState = "STOPPED"
)

// String returns the wire representation.
func (s WorkerState) String() string {
	return string(s)
}

// IsTerminal reports whether the process is done after this state.
func (s WorkerState) IsTerminal() bool {
	return s == WorkerStateStopped
}

// CanTransitionTo enumerates the legal lifecycle edges. A failed job skips
// ACKING and returns straight to POLLING: the message is left on the queue
// for redelivery.
func (s WorkerState) CanTransitionTo(target WorkerState) bool {
	switch s {
	case WorkerStateStarting:
		return target == WorkerStatePolling || target == WorkerStateStopped
	case WorkerStatePolling:
		return target == WorkerStateClaimed ||
			target == WorkerStateIdleShutdown ||
			target == WorkerStateSignalShutdown ||
			target == WorkerStatePolling
	case WorkerStateClaimed:
		return target == WorkerStateProcessing || target == WorkerStatePolling
	case WorkerStateProcessing:
		return target == WorkerStateAcking || target == WorkerStatePolling
	case WorkerStateAcking:
		return target == WorkerStatePolling
	case WorkerStateIdleShutdown, WorkerStateSignalShutdown:
		return target == WorkerStateStopped
	case WorkerStateStopped:
		return false
	default:
		return false
	}
}

// WorkerStatus is the durable status in the worker's heartbeat document.
type WorkerStatus string

const (
	WorkerStatusRunning WorkerStatus = "RUNNING"
	WorkerStatusStopped WorkerStatus = "STOPPED"
)

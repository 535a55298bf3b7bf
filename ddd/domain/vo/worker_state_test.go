package vo

import "testing"

func TestWorkerStateLifecycleEdges(t *testing.T) {
	cases := []struct {
		from, to WorkerState
		want     bool
	}{
		{WorkerStateStarting, WorkerStatePolling, true},
		{WorkerStatePolling, WorkerStateClaimed, true},
		{WorkerStateClaimed, WorkerStateProcessing, true},
		{WorkerStateProcessing, WorkerStateAcking, true},
		{WorkerStateAcking, WorkerStatePolling, true},
		// Failure path: the message stays on the queue, no ack.
		{WorkerStateProcessing, WorkerStatePolling, true},
		{WorkerStatePolling, WorkerStateIdleShutdown, true},
		{WorkerStatePolling, WorkerStateSignalShutdown, true},
		{WorkerStateIdleShutdown, WorkerStateStopped, true},
		{WorkerStateSignalShutdown, WorkerStateStopped, true},

		{WorkerStateStarting, WorkerStateProcessing, false},
		{WorkerStateProcessing, WorkerStateIdleShutdown, false},
		{WorkerStateAcking, WorkerStateClaimed, false},
		{WorkerStateStopped, WorkerStatePolling, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestWorkerStateTerminal(t *testing.T) {
	if !WorkerStateStopped.IsTerminal() {
		t.Error("STOPPED should be terminal")
	}
	if WorkerStateIdleShutdown.IsTerminal() {
		t.Error("IDLE_SHUTDOWN should not be terminal")
	}
}

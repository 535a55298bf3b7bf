package vo

import "testing"

func TestJobStatusForwardOnly(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusStarted, JobStatusDownloading, true},
		{JobStatusDownloading, JobStatusDownloaded, true},
		{JobStatusTranscribing, JobStatusTranscribing, true},
		{JobStatusTranscribing, JobStatusTranscribed, true},
		{JobStatusUploading, JobStatusCompleted, true},
		{JobStatusDownloaded, JobStatusDownloading, false},
		{JobStatusTranscribed, JobStatusTranscribing, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusStarted, false},
		// Skipping forward stages is allowed; the progression is coarse.
		{JobStatusStarted, JobStatusTranscribing, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestJobStatusFailedFromAnyNonTerminal(t *testing.T) {
	for _, s := range []JobStatus{
		JobStatusStarted, JobStatusDownloading, JobStatusPreparing,
		JobStatusModelLoading, JobStatusTranscribing, JobStatusSaving,
		JobStatusUploading,
	} {
		if !s.CanTransitionTo(JobStatusFailed) {
			t.Errorf("CanTransitionTo(%s -> FAILED) = false, want true", s)
		}
	}
}

func TestJobStatusUnknownRejected(t *testing.T) {
	if JobStatus("BOGUS").CanTransitionTo(JobStatusStarted) {
		t.Error("unknown source status accepted")
	}
	if JobStatusStarted.CanTransitionTo(JobStatus("BOGUS")) {
		t.Error("unknown target status accepted")
	}
}

package vo

// JobStatus is the monitor-visible stage of one transcription job. The
// progression is strictly forward: a write that would move backwards or leave
// a terminal state is rejected, so monitors never observe logically invalid
// documents.
type JobStatus string

const (
	JobStatusStarted      JobStatus = "STARTED"
	JobStatusDownloading  JobStatus = "DOWNLOADING"
	JobStatusDownloaded   JobStatus = "DOWNLOADED"
	JobStatusPreparing    JobStatus = "PREPARING"
	JobStatusModelLoading JobStatus = "MODEL_LOADING"
	JobStatusModelReady   JobStatus = "MODEL_READY"
	JobStatusTranscribing JobStatus = "TRANSCRIBING"
	JobStatusTranscribed  JobStatus = "TRANSCRIBED"
	JobStatusSaving       JobStatus = "SAVING"
	JobStatusUploading    JobStatus = "UPLOADING"
	JobStatusCompleted    JobStatus = "COMPLETED"
	JobStatusFailed       JobStatus = "FAILED"
)

var jobStatusRank = map[JobStatus]int{
	JobStatusStarted:      0,
	JobStatusDownloading:  1,
	JobStatusDownloaded:   2,
	JobStatusPreparing:    3,
	JobStatusModelLoading: 4,
	JobStatusModelReady:   5,
	JobStatusTranscribing: 6,
	JobStatusTranscribed:  7,
	JobStatusSaving:       8,
	JobStatusUploading:    9,
	JobStatusCompleted:    10,
	JobStatusFailed:       11,
}

// IsValid reports whether the status is a known stage.
func (s JobStatus) IsValid() bool {
	_, ok := jobStatusRank[s]
	return ok
}

// String returns the wire representation.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status ends the job.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether target is a legal next stage. Repeated
// writes of the same stage are allowed (chunk-by-chunk TRANSCRIBING updates);
// FAILED is reachable from any non-terminal stage.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if target == JobStatusFailed {
		return true
	}
	return jobStatusRank[target] >= jobStatusRank[s]
}

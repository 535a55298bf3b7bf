package progress

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/domain/vo"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/pkg/errno"
)

func report(t *testing.T, s *ObjectSink, jobID string, status vo.JobStatus, msg string, pct int) {
	t.Helper()
	err := s.Report(context.Background(), &entity.JobProgress{
		JobID:      jobID,
		Status:     status,
		Message:    msg,
		Percentage: pct,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Report(%s) error = %v", status, err)
	}
}

func TestObjectSinkWritesStatusAndLog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	s := NewObjectSink(store)

	report(t, s, "job-1", vo.JobStatusStarted, "Job job-1 started processing", 0)
	report(t, s, "job-1", vo.JobStatusDownloading, "Downloading", 5)
	report(t, s, "job-1", vo.JobStatusTranscribing, "Chunk 1/3", 50)

	body, err := store.GetObject(ctx, "progress/job-1/status.json")
	if err != nil {
		t.Fatalf("status document missing: %v", err)
	}
	var p entity.JobProgress
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if p.Status != vo.JobStatusTranscribing || p.Percentage != 50 {
		t.Fatalf("status doc = %+v, want latest update", p)
	}

	logBody, err := store.GetObject(ctx, "progress/job-1/detailed_log.txt")
	if err != nil {
		t.Fatalf("detailed log missing: %v", err)
	}
	lines := strings.Split(string(logBody), "\n")
	if len(lines) != 3 {
		t.Fatalf("log lines = %d, want 3:\n%s", len(lines), logBody)
	}
	if !strings.Contains(lines[0], "STARTED") || !strings.Contains(lines[2], "TRANSCRIBING") {
		t.Fatalf("log order wrong:\n%s", logBody)
	}
}

func TestObjectSinkRejectsBackwardTransition(t *testing.T) {
	s := NewObjectSink(storage.NewMemStore())
	report(t, s, "job-2", vo.JobStatusTranscribed, "done transcribing", 90)

	err := s.Report(context.Background(), &entity.JobProgress{
		JobID:     "job-2",
		Status:    vo.JobStatusDownloading,
		Timestamp: time.Now().UTC(),
	})
	if !errors.Is(err, errno.ErrInvalidTransition) {
		t.Fatalf("backward transition error = %v, want ErrInvalidTransition class", err)
	}
}

func TestObjectSinkReportErrorAlwaysLands(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	s := NewObjectSink(store)
	report(t, s, "job-3", vo.JobStatusUploading, "almost there", 98)

	if err := s.ReportError(ctx, "job-3", errors.New("upload exploded")); err != nil {
		t.Fatalf("ReportError() error = %v", err)
	}

	body, _ := store.GetObject(ctx, "progress/job-3/status.json")
	var p entity.JobProgress
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if p.Status != vo.JobStatusFailed || !strings.Contains(p.Message, "upload exploded") {
		t.Fatalf("status doc = %+v, want FAILED with cause", p)
	}
}

func TestObjectSinkTerminalResetsJobBookkeeping(t *testing.T) {
	s := NewObjectSink(storage.NewMemStore())
	report(t, s, "job-4", vo.JobStatusCompleted, "done", 100)

	// A redelivered job starts its progression over after a terminal write.
	report(t, s, "job-4", vo.JobStatusStarted, "retry", 0)
}

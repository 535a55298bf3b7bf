package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// ObjectSink publishes job progress to the object store for monitors:
// progress/<job_id>/status.json is overwritten on every update and
// progress/<job_id>/detailed_log.txt accumulates one line per update.
// Backward stage moves are rejected so a monitor never sees a job
// travel back in time.
type ObjectSink struct {
	store gateway.ObjectStore

	mu   sync.Mutex
	last map[string]vo.JobStatus
	logs map[string][]string
}

// NewObjectSink wraps the store.
func NewObjectSink(store gateway.ObjectStore) *ObjectSink {
	return &ObjectSink{
		store: store,
		last:  make(map[string]vo.JobStatus),
		logs:  make(map[string][]string),
	}
}

// Report validates the transition and writes both documents.
func (s *ObjectSink) Report(ctx context.Context, p *entity.JobProgress) error {
	s.mu.Lock()
	if prev, ok := s.last[p.JobID]; ok && !prev.CanTransitionTo(p.Status) {
		s.mu.Unlock()
		return errno.Classify(errno.ErrInvalidTransition,
			fmt.Errorf("job %s: %s -> %s", p.JobID, prev, p.Status))
	}
	s.last[p.JobID] = p.Status

	line := fmt.Sprintf("[%s] [%.1fs] %s: %s", p.Timestamp.Format(time.RFC3339), p.ElapsedSeconds, p.Status, p.Message)
	if p.Percentage > 0 {
		line += fmt.Sprintf(" (%d%%)", p.Percentage)
	}
	if p.ChunkInfo != nil {
		line += fmt.Sprintf(" - Chunk %d/%d", p.ChunkInfo.Current, p.ChunkInfo.Total)
	}
	s.logs[p.JobID] = append(s.logs[p.JobID], line)
	lines := strings.Join(s.logs[p.JobID], "\n")

	if p.Status.IsTerminal() {
		// Terminal stage: the job's bookkeeping is no longer needed.
		delete(s.last, p.JobID)
		delete(s.logs, p.JobID)
	}
	s.mu.Unlock()

	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.store.PutObject(ctx, statusKey(p.JobID), body, "application/json"); err != nil {
		return err
	}
	if err := s.store.PutObject(ctx, logKey(p.JobID), []byte(lines), "text/plain"); err != nil {
		// The status document is authoritative; a failed log write only
		// costs detail.
		logger.Warn("detailed log write failed", map[string]interface{}{
			"job_id": p.JobID,
			"error":  err.Error(),
		})
	}
	return nil
}

// ReportError marks the job FAILED. Always legal from a non-terminal stage.
func (s *ObjectSink) ReportError(ctx context.Context, jobID string, cause error) error {
	return s.Report(ctx, &entity.JobProgress{
		JobID:     jobID,
		Status:    vo.JobStatusFailed,
		Message:   fmt.Sprintf("Transcription failed: %v", cause),
		Timestamp: time.Now().UTC(),
	})
}

func statusKey(jobID string) string {
	return path.Join("progress", jobID, "status.json")
}

func logKey(jobID string) string {
	return path.Join("progress", jobID, "detailed_log.txt")
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/config"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// transcriptEnvelope is the document uploaded to the job's s3_output_path.
// It wraps the transcript with worker provenance for downstream consumers.
type transcriptEnvelope struct {
	JobID                    string         `json:"job_id"`
	S3InputPath              string         `json:"s3_input_path"`
	S3OutputPath             string         `json:"s3_output_path"`
	EstimatedDurationSeconds int            `json:"estimated_duration_seconds"`
	ActualTranscriptionTime  float64        `json:"actual_transcription_time_seconds"`
	ProcessedAt              time.Time      `json:"processed_at"`
	WorkerID                 string         `json:"worker_id"`
	WorkerType               string         `json:"worker_type"`
	Model                    string         `json:"model"`
	SegmentsCount            int            `json:"segments_count"`
	Transcript               *vo.Transcript `json:"transcript"`
}

// Worker is the lifecycle state machine of one worker process: poll, claim,
// process, acknowledge, repeat; shut itself down when the queue stays empty.
// One job in flight at a time.
type Worker struct {
	cfg      *config.WorkerConfig
	queueCfg *config.QueueConfig

	queue       gateway.JobQueue
	store       gateway.ObjectStore
	metrics     *MetricsStore
	engine      *Engine
	transcriber gateway.ChunkTranscriber
	progress    port.ProgressSink
	fleet       gateway.FleetAPI    // nil disables self-termination
	events      port.EventPublisher // nil disables publishing

	mu           sync.Mutex
	state        vo.WorkerState
	record       entity.WorkerRecord
	jobStartedAt time.Time
}

// NewWorker wires a worker process. The transcriber must already be selected
// and probed; a worker that cannot load its model never reaches this point.
func NewWorker(cfg *config.WorkerConfig, queueCfg *config.QueueConfig, queue gateway.JobQueue, store gateway.ObjectStore, metrics *MetricsStore, engine *Engine, transcriber gateway.ChunkTranscriber, progress port.ProgressSink, fleet gateway.FleetAPI, events port.EventPublisher) *Worker {
	model, gpu := transcriber.Describe()
	return &Worker{
		cfg:         cfg,
		queueCfg:    queueCfg,
		queue:       queue,
		store:       store,
		metrics:     metrics,
		engine:      engine,
		transcriber: transcriber,
		progress:    progress,
		fleet:       fleet,
		events:      events,
		state:       vo.WorkerStateStarting,
		record: entity.WorkerRecord{
			WorkerID:     cfg.WorkerID,
			Status:       vo.WorkerStatusRunning,
			Model:        model,
			GPUOptimized: gpu,
		},
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() vo.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Run drives the lifecycle until the queue idles out or ctx is cancelled.
// Cancellation is cooperative: it is honored at the top of the poll loop,
// never mid-job.
func (w *Worker) Run(ctx context.Context) error {
	now := time.Now().UTC()
	w.mu.Lock()
	w.record.StartedAt = now
	w.record.LastHeartbeat = now
	w.mu.Unlock()
	if err := w.writeRecord(ctx); err != nil {
		return err
	}
	w.transition(vo.WorkerStatePolling)

	logger.Info("worker started", map[string]interface{}{
		"worker_id":     w.cfg.WorkerID,
		"model":         w.record.Model,
		"gpu_optimized": w.record.GPUOptimized,
	})

	idleSince := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.transition(vo.WorkerStateSignalShutdown)
			return w.shutdown(false)
		default:
		}

		msg, err := w.queue.Receive(ctx, w.queueCfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				w.transition(vo.WorkerStateSignalShutdown)
				return w.shutdown(false)
			}
			logger.Warn("queue receive failed, backing off", map[string]interface{}{
				"worker_id": w.cfg.WorkerID,
				"error":     err.Error(),
			})
			time.Sleep(w.cfg.ErrorBackoff)
			continue
		}

		if msg == nil {
			if time.Since(idleSince) > w.cfg.IdleThreshold {
				w.transition(vo.WorkerStateIdleShutdown)
				return w.shutdown(true)
			}
			w.transition(vo.WorkerStatePolling)
			continue
		}

		w.transition(vo.WorkerStateClaimed)
		if err := w.processMessage(ctx, msg); err != nil {
			// Leave the message for redelivery after the lease expires.
			logger.Error("job failed, message left for redelivery", map[string]interface{}{
				"worker_id":     w.cfg.WorkerID,
				"message_id":    msg.ID,
				"receive_count": msg.ReceiveCount,
				"error":         err.Error(),
			})
			w.transition(vo.WorkerStatePolling)
			continue
		}

		w.transition(vo.WorkerStateAcking)
		if err := w.queue.Delete(ctx, msg); err != nil {
			// The job succeeded but the ack failed; the message will be
			// redelivered and short-circuit on the completion marker.
			logger.Warn("message delete failed after success", map[string]interface{}{
				"worker_id":  w.cfg.WorkerID,
				"message_id": msg.ID,
				"error":      err.Error(),
			})
		}
		w.mu.Lock()
		w.record.JobsProcessed++
		w.mu.Unlock()
		if err := w.writeRecord(ctx); err != nil {
			logger.Warn("heartbeat write failed", map[string]interface{}{"error": err.Error()})
		}
		idleSince = time.Now()
		w.transition(vo.WorkerStatePolling)
	}
}

// Heartbeat rewrites the worker record on a fixed cadence until ctx ends.
// Runs independently of job processing.
func (w *Worker) Heartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.writeRecord(ctx); err != nil {
				logger.Warn("heartbeat write failed", map[string]interface{}{
					"worker_id": w.cfg.WorkerID,
					"error":     err.Error(),
				})
			}
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, msg *gateway.Message) error {
	w.transition(vo.WorkerStateProcessing)
	w.mu.Lock()
	w.jobStartedAt = time.Now()
	w.mu.Unlock()

	job, err := entity.ParseJob(msg.Body)
	if err != nil {
		return err
	}

	log := func(event string, extra map[string]interface{}) {
		fields := map[string]interface{}{"worker_id": w.cfg.WorkerID, "job_id": job.JobID}
		for k, v := range extra {
			fields[k] = v
		}
		logger.Info(event, fields)
	}
	log("job claimed", map[string]interface{}{"receive_count": msg.ReceiveCount})

	// Refresh the lease so the clock starts at claim time, not enqueue time.
	if err := w.queue.ExtendVisibility(ctx, msg, w.queueCfg.VisibilityTimeout); err != nil {
		logger.Warn("visibility extension failed", map[string]interface{}{"error": err.Error()})
	}

	workDir := filepath.Join(w.cfg.ScratchDir, job.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fail := func(cause error) error {
		if perr := w.progress.ReportError(ctx, job.JobID, cause); perr != nil {
			logger.Warn("progress error report failed", map[string]interface{}{"error": perr.Error()})
		}
		if merr := w.metrics.RemoveJob(ctx, job.EstimatedDurationSeconds); merr != nil {
			logger.Warn("metrics remove failed", map[string]interface{}{"error": merr.Error()})
		}
		w.publishJobEvent(ctx, vo.JobEventFailed, job.JobID, 0, cause)
		return cause
	}

	w.report(ctx, job.JobID, vo.JobStatusStarted, fmt.Sprintf("Job %s started processing", job.JobID), 0, nil)

	w.report(ctx, job.JobID, vo.JobStatusDownloading, fmt.Sprintf("Downloading from %s", job.S3InputPath), 5, nil)
	localAudio := filepath.Join(workDir, "input"+path.Ext(job.S3InputPath))
	if err := w.store.DownloadURI(ctx, job.S3InputPath, localAudio); err != nil {
		return fail(errno.Classify(errno.ErrTransientInfra, err))
	}
	w.report(ctx, job.JobID, vo.JobStatusDownloaded, "Audio downloaded to worker", 10, nil)

	if fi, serr := os.Stat(localAudio); serr == nil {
		w.report(ctx, job.JobID, vo.JobStatusPreparing, fmt.Sprintf("Audio file ready (%.1fMB)", float64(fi.Size())/(1024*1024)), 15, nil)
	} else {
		w.report(ctx, job.JobID, vo.JobStatusPreparing, "Audio file ready", 15, nil)
	}

	// The model was loaded and probed at process startup; the stages are
	// still reported so monitors see the full progression.
	w.report(ctx, job.JobID, vo.JobStatusModelLoading, "Loading transcription model", 20, nil)
	w.report(ctx, job.JobID, vo.JobStatusModelReady, fmt.Sprintf("Model %s ready", w.record.Model), 25, nil)

	w.report(ctx, job.JobID, vo.JobStatusTranscribing, "Starting transcription", 30, nil)
	transcript, err := w.engine.Resume(ctx, localAudio, job.JobID, workDir)
	if err != nil {
		return fail(err)
	}
	elapsed := time.Since(w.jobStartedAt).Seconds()
	w.report(ctx, job.JobID, vo.JobStatusTranscribed, fmt.Sprintf("Transcription complete - %d segments", len(transcript.Segments)), 90, nil)

	w.report(ctx, job.JobID, vo.JobStatusSaving, "Saving transcript", 95, nil)
	envelope := transcriptEnvelope{
		JobID:                    job.JobID,
		S3InputPath:              job.S3InputPath,
		S3OutputPath:             job.S3OutputPath,
		EstimatedDurationSeconds: job.EstimatedDurationSeconds,
		ActualTranscriptionTime:  elapsed,
		ProcessedAt:              time.Now().UTC(),
		WorkerID:                 w.cfg.WorkerID,
		WorkerType:               workerType(w.record.GPUOptimized),
		Model:                    w.record.Model,
		SegmentsCount:            len(transcript.Segments),
		Transcript:               transcript,
	}
	localOut := filepath.Join(workDir, job.JobID+"_transcript.json")
	body, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("marshal transcript envelope: %w", err))
	}
	if err := os.WriteFile(localOut, body, 0o644); err != nil {
		return fail(fmt.Errorf("write transcript envelope: %w", err))
	}

	w.report(ctx, job.JobID, vo.JobStatusUploading, fmt.Sprintf("Uploading to %s", job.S3OutputPath), 98, nil)
	if err := w.store.UploadURI(ctx, localOut, job.S3OutputPath); err != nil {
		return fail(errno.Classify(errno.ErrTransientInfra, err))
	}

	if err := w.metrics.CompleteJob(ctx, job.EstimatedDurationSeconds); err != nil {
		logger.Warn("metrics complete failed", map[string]interface{}{"error": err.Error()})
	}
	w.report(ctx, job.JobID, vo.JobStatusCompleted, fmt.Sprintf("Completed - %d segments in %.1fs", len(transcript.Segments), elapsed), 100, nil)
	w.publishJobEvent(ctx, vo.JobEventCompleted, job.JobID, len(transcript.Segments), nil)

	log("job completed", map[string]interface{}{
		"segments":        len(transcript.Segments),
		"elapsed_seconds": elapsed,
	})
	return nil
}

// ReportTranscribing implements the engine's progress callback: chunk
// completion maps onto the 30-90% band of the job's progress bar.
func (w *Worker) ReportTranscribing(ctx context.Context, jobID string, completed, total int) {
	pct := 30
	if total > 0 {
		pct = 30 + int(float64(completed)/float64(total)*60)
	}
	w.report(ctx, jobID, vo.JobStatusTranscribing,
		fmt.Sprintf("Transcribed chunk %d/%d", completed, total), pct,
		&vo.ChunkInfo{Current: completed, Total: total})
}

func (w *Worker) report(ctx context.Context, jobID string, status vo.JobStatus, message string, pct int, chunks *vo.ChunkInfo) {
	w.mu.Lock()
	elapsed := time.Since(w.jobStartedAt).Seconds()
	w.mu.Unlock()
	p := &entity.JobProgress{
		JobID:          jobID,
		Status:         status,
		Message:        message,
		Percentage:     pct,
		ElapsedSeconds: elapsed,
		ChunkInfo:      chunks,
		Timestamp:      time.Now().UTC(),
	}
	if err := w.progress.Report(ctx, p); err != nil {
		logger.Warn("progress report failed", map[string]interface{}{
			"job_id": jobID,
			"status": status.String(),
			"error":  err.Error(),
		})
	}
}

func (w *Worker) publishJobEvent(ctx context.Context, kind vo.JobEventKind, jobID string, segments int, cause error) {
	if w.events == nil {
		return
	}
	ev := &vo.JobEvent{
		Kind:          kind,
		JobID:         jobID,
		WorkerID:      w.cfg.WorkerID,
		SegmentsCount: segments,
		ElapsedSecs:   time.Since(w.jobStartedAt).Seconds(),
		OccurredAt:    time.Now().UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := w.events.PublishJobEvent(ctx, ev); err != nil {
		logger.Warn("job event publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// shutdown writes the terminal worker record and, for an idle preemptible
// worker, asks the fleet to reclaim its instance.
func (w *Worker) shutdown(idle bool) error {
	// The run context may already be cancelled; the final record write and
	// self-terminate get their own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	w.mu.Lock()
	w.record.Status = vo.WorkerStatusStopped
	w.record.StoppedAt = &now
	w.mu.Unlock()
	if err := w.writeRecord(ctx); err != nil {
		logger.Warn("final record write failed", map[string]interface{}{"error": err.Error()})
	}

	reason := "signal"
	if idle {
		reason = "idle"
	}
	logger.Info("worker shutting down", map[string]interface{}{
		"worker_id":      w.cfg.WorkerID,
		"reason":         reason,
		"jobs_processed": w.record.JobsProcessed,
	})

	if idle && w.cfg.Preemptible && w.fleet != nil && w.cfg.InstanceID != "" {
		if err := w.fleet.RequestSelfTerminate(ctx, w.cfg.InstanceID); err != nil {
			logger.Warn("self-terminate request failed", map[string]interface{}{
				"instance_id": w.cfg.InstanceID,
				"error":       err.Error(),
			})
		}
	}

	w.transition(vo.WorkerStateStopped)
	return nil
}

func (w *Worker) transition(target vo.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == target {
		return
	}
	if !w.state.CanTransitionTo(target) {
		logger.Error("illegal worker state transition", map[string]interface{}{
			"from": w.state.String(),
			"to":   target.String(),
		})
		return
	}
	logger.Debug("worker state transition", map[string]interface{}{
		"from": w.state.String(),
		"to":   target.String(),
	})
	w.state = target
}

func (w *Worker) writeRecord(ctx context.Context) error {
	w.mu.Lock()
	w.record.LastHeartbeat = time.Now().UTC()
	rec := w.record
	w.mu.Unlock()

	body, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal worker record: %w", err)
	}
	key := path.Join("workers", rec.WorkerID, "status.json")
	if err := w.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return errno.Classify(errno.ErrTransientInfra, err)
	}
	return nil
}

func workerType(gpu bool) string {
	if gpu {
		return "gpu_optimized"
	}
	return "standard"
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

const (
	transcriptPrefix   = "transcripts"
	chunkKeyFormat     = "chunk_%04d.json"
	fullTranscriptName = "full_transcript.json"
)

// Engine is the chunked resumable transcription pipeline: split the audio
// into fixed-length chunks, transcribe each, shift chunk-local timestamps
// onto the global timeline, and checkpoint every chunk to the object store
// before advancing. A crash mid-job loses at most one chunk's work.
type Engine struct {
	store       gateway.ObjectStore
	chunker     gateway.AudioChunker
	transcriber gateway.ChunkTranscriber
	progress    ProgressReporter
	chunkSize   int
	language    string
}

// ProgressReporter receives per-chunk progress from the engine. Satisfied by
// the worker's progress tracker; a nil reporter disables reporting.
type ProgressReporter interface {
	ReportTranscribing(ctx context.Context, jobID string, completed, total int)
}

// NewEngine builds the engine. chunkSizeSeconds must match across transcribe
// and resume calls for the same job, otherwise checkpoint indices shift.
func NewEngine(store gateway.ObjectStore, chunker gateway.AudioChunker, transcriber gateway.ChunkTranscriber, progress ProgressReporter, chunkSizeSeconds int, language string) *Engine {
	return &Engine{
		store:       store,
		chunker:     chunker,
		transcriber: transcriber,
		progress:    progress,
		chunkSize:   chunkSizeSeconds,
		language:    language,
	}
}

// SetProgressReporter binds the reporter after construction; the worker that
// owns the engine is also its reporter, so it cannot be passed at build time.
func (e *Engine) SetProgressReporter(r ProgressReporter) {
	e.progress = r
}

// Transcribe runs a job from scratch, ignoring any existing checkpoints.
func (e *Engine) Transcribe(ctx context.Context, audioFile, jobID, workDir string) (*vo.Transcript, error) {
	return e.run(ctx, audioFile, jobID, workDir, false)
}

// Resume continues a previously interrupted job. A persisted merged
// transcript short-circuits the whole run; otherwise chunks that already
// have checkpoints are recovered instead of re-transcribed.
func (e *Engine) Resume(ctx context.Context, audioFile, jobID, workDir string) (*vo.Transcript, error) {
	return e.run(ctx, audioFile, jobID, workDir, true)
}

func (e *Engine) run(ctx context.Context, audioFile, jobID, workDir string, resume bool) (*vo.Transcript, error) {
	if resume {
		if t, ok := e.loadCompleted(ctx, jobID); ok {
			logger.Info("job already completed, returning persisted transcript", map[string]interface{}{
				"job_id":   jobID,
				"segments": len(t.Segments),
			})
			return t, nil
		}
	}

	chunks, err := e.chunker.Split(ctx, audioFile, workDir)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errno.Classify(errno.ErrAudioProcessing, fmt.Errorf("no chunks produced from %s", audioFile))
	}

	completed := map[int][]vo.Segment{}
	if resume {
		completed = e.loadCheckpoints(ctx, jobID)
		if len(completed) > 0 {
			logger.Info("resuming from checkpoints", map[string]interface{}{
				"job_id":           jobID,
				"completed_chunks": len(completed),
				"total_chunks":     len(chunks),
			})
		}
	}

	var all []vo.Segment
	done := 0
	for _, chunk := range chunks {
		if segs, ok := completed[chunk.Index]; ok {
			all = append(all, segs...)
			done++
			e.report(ctx, jobID, done, len(chunks))
			continue
		}

		segs, terr := e.transcriber.TranscribeChunk(ctx, chunk.Path)
		if terr != nil {
			return nil, errno.Classify(errno.ErrTranscription, fmt.Errorf("chunk %d: %w", chunk.Index, terr))
		}

		// Map chunk-local timestamps onto the global timeline before the
		// checkpoint so recovered segments need no further adjustment.
		offset := float64(chunk.Index * e.chunkSize)
		for i := range segs {
			segs[i].Shift(offset)
		}

		if cerr := e.checkpoint(ctx, jobID, chunk.Index, segs); cerr != nil {
			return nil, cerr
		}
		all = append(all, segs...)
		done++
		e.report(ctx, jobID, done, len(chunks))
	}

	// Chunks are independent; global order comes from timestamps, not
	// chunk index.
	vo.SortSegmentsByStart(all)
	transcript := &vo.Transcript{
		Segments:      all,
		Language:      e.language,
		TranscribedAt: time.Now().UTC(),
	}

	if err := e.persistCompleted(ctx, jobID, transcript); err != nil {
		return nil, err
	}
	return transcript, nil
}

func (e *Engine) report(ctx context.Context, jobID string, done, total int) {
	if e.progress != nil {
		e.progress.ReportTranscribing(ctx, jobID, done, total)
	}
}

func (e *Engine) checkpoint(ctx context.Context, jobID string, index int, segs []vo.Segment) error {
	body, err := json.Marshal(vo.ChunkResult{ChunkIndex: index, Segments: segs})
	if err != nil {
		return fmt.Errorf("marshal chunk %d: %w", index, err)
	}
	key := e.chunkKey(jobID, index)
	if err := e.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("checkpoint %s: %w", key, err))
	}
	return nil
}

// loadCheckpoints collects every persisted chunk result for the job. Corrupt
// checkpoints are dropped so the chunk is simply re-transcribed.
func (e *Engine) loadCheckpoints(ctx context.Context, jobID string) map[int][]vo.Segment {
	prefix := path.Join(transcriptPrefix, jobID, "segments") + "/"
	keys, err := e.store.ListKeys(ctx, prefix)
	if err != nil {
		logger.Warn("checkpoint listing failed, transcribing all chunks", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
		return nil
	}

	out := make(map[int][]vo.Segment, len(keys))
	for _, key := range keys {
		var idx int
		if _, serr := fmt.Sscanf(path.Base(key), chunkKeyFormat, &idx); serr != nil {
			continue
		}
		body, gerr := e.store.GetObject(ctx, key)
		if gerr != nil {
			continue
		}
		var cr vo.ChunkResult
		if jerr := json.Unmarshal(body, &cr); jerr != nil {
			logger.Warn("dropping corrupt checkpoint", map[string]interface{}{"key": key})
			continue
		}
		out[idx] = cr.Segments
	}
	return out
}

func (e *Engine) loadCompleted(ctx context.Context, jobID string) (*vo.Transcript, bool) {
	body, err := e.store.GetObject(ctx, e.completionKey(jobID))
	if err != nil {
		return nil, false
	}
	var t vo.Transcript
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, false
	}
	return &t, true
}

// persistCompleted writes the merged transcript; its presence is the
// terminal completion marker that makes reruns a no-op.
func (e *Engine) persistCompleted(ctx context.Context, jobID string, t *vo.Transcript) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	key := e.completionKey(jobID)
	if err := e.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return errno.Classify(errno.ErrTransientInfra, fmt.Errorf("persist %s: %w", key, err))
	}
	return nil
}

func (e *Engine) chunkKey(jobID string, index int) string {
	return path.Join(transcriptPrefix, jobID, "segments", fmt.Sprintf(chunkKeyFormat, index))
}

func (e *Engine) completionKey(jobID string) string {
	return path.Join(transcriptPrefix, jobID, fullTranscriptName)
}

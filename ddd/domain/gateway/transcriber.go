package gateway

import (
	"context"

	"transcription-service/ddd/domain/vo"
)

// ChunkTranscriber converts one audio chunk into segments with chunk-local
// timestamps. The model behind it is opaque; implementations call an external
// inference server. Selected once at worker startup by a capability probe,
// never per-job.
type ChunkTranscriber interface {
	// TranscribeChunk transcribes a single WAV chunk from local disk.
	TranscribeChunk(ctx context.Context, wavPath string) ([]vo.Segment, error)

	// Describe reports the backing model and whether the GPU-optimized
	// path is active, for the worker's heartbeat document.
	Describe() (model string, gpuOptimized bool)
}

// AudioChunk is one fixed-duration slice of a job's audio on local disk.
type AudioChunk struct {
	Index int
	Path  string
}

// AudioChunker splits an audio file into fixed-duration chunks.
type AudioChunker interface {
	Split(ctx context.Context, audioFile, workDir string) ([]AudioChunk, error)

	// ProbeDuration returns the audio duration in seconds.
	ProbeDuration(ctx context.Context, audioFile string) (float64, error)
}

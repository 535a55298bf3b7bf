package chunker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// FFmpegChunker implements gateway.AudioChunker by shelling out to ffmpeg.
// Each chunk is re-encoded to 16kHz mono PCM, the input format inference
// servers expect. Splitting is I/O bound, so chunks are extracted by a small
// bounded pool; inference stays strictly sequential elsewhere.
type FFmpegChunker struct {
	ffmpeg    string
	ffprobe   string
	chunkSize int
	workers   int
}

// NewFFmpegChunker configures the splitter. chunkSizeSeconds is the fixed
// chunk length; workers bounds concurrent ffmpeg processes.
func NewFFmpegChunker(ffmpegBinary, ffprobeBinary string, chunkSizeSeconds, workers int) *FFmpegChunker {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if workers < 1 {
		workers = 1
	}
	return &FFmpegChunker{
		ffmpeg:    ffmpegBinary,
		ffprobe:   ffprobeBinary,
		chunkSize: chunkSizeSeconds,
		workers:   workers,
	}
}

// ProbeDuration returns the audio duration in seconds via ffprobe.
func (c *FFmpegChunker) ProbeDuration(ctx context.Context, audioFile string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioFile,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, errno.Classify(errno.ErrAudioProcessing,
			fmt.Errorf("ffprobe %s: %w: %s", audioFile, err, strings.TrimSpace(stderr.String())))
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, errno.Classify(errno.ErrAudioProcessing,
			fmt.Errorf("ffprobe %s: unparseable duration %q", audioFile, out.String()))
	}
	return dur, nil
}

// Split cuts the audio into fixed-length WAV chunks under workDir, named
// chunk_<NNNN>.wav. The final chunk is truncated to the remaining audio.
func (c *FFmpegChunker) Split(ctx context.Context, audioFile, workDir string) ([]gateway.AudioChunk, error) {
	duration, err := c.ProbeDuration(ctx, audioFile)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, errno.Classify(errno.ErrAudioProcessing, fmt.Errorf("%s: zero-length audio", audioFile))
	}

	total := int(duration) / c.chunkSize
	if float64(total*c.chunkSize) < duration {
		total++
	}

	logger.Info("splitting audio", map[string]interface{}{
		"file":             audioFile,
		"duration_seconds": duration,
		"chunks":           total,
	})

	chunks := make([]gateway.AudioChunk, total)
	errs := make([]error, total)
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out := filepath.Join(workDir, fmt.Sprintf("chunk_%04d.wav", idx))
			errs[idx] = c.extract(ctx, audioFile, out, idx*c.chunkSize)
			chunks[idx] = gateway.AudioChunk{Index: idx, Path: out}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

func (c *FFmpegChunker) extract(ctx context.Context, audioFile, outPath string, startSeconds int) error {
	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-y",
		"-ss", strconv.Itoa(startSeconds),
		"-t", strconv.Itoa(c.chunkSize),
		"-i", audioFile,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errno.Classify(errno.ErrAudioProcessing,
			fmt.Errorf("ffmpeg extract %s: %w: %s", outPath, err, strings.TrimSpace(stderr.String())))
	}
	return nil
}

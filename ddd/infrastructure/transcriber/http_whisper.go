package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"transcription-service/ddd/domain/vo"
	"transcription-service/pkg/config"
	"transcription-service/pkg/errno"
	"transcription-service/pkg/logger"
)

// HTTPWhisper implements gateway.ChunkTranscriber against an external
// speech-to-text inference server. One chunk per request; the server returns
// chunk-local timestamps and the engine does the timeline shifting.
type HTTPWhisper struct {
	endpoint  string
	model     string
	language  string
	batchSize int
	gpu       bool
	client    *http.Client
}

type transcribeResponse struct {
	Segments []vo.Segment `json:"segments"`
	Language string       `json:"language"`
}

// NewHTTPWhisper builds a client for one inference endpoint.
func NewHTTPWhisper(endpoint, model, language string, batchSize int, gpu bool, timeout time.Duration) *HTTPWhisper {
	return &HTTPWhisper{
		endpoint:  endpoint,
		model:     model,
		language:  language,
		batchSize: batchSize,
		gpu:       gpu,
		client:    &http.Client{Timeout: timeout},
	}
}

// TranscribeChunk posts one WAV chunk and decodes the returned segments.
func (t *HTTPWhisper) TranscribeChunk(ctx context.Context, wavPath string) ([]vo.Segment, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, errno.Classify(errno.ErrAudioProcessing, fmt.Errorf("read chunk %s: %w", wavPath, err))
	}

	q := url.Values{}
	q.Set("model", t.model)
	if t.language != "" {
		q.Set("language", t.language)
	}
	if t.gpu && t.batchSize > 0 {
		q.Set("batch_size", strconv.Itoa(t.batchSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/transcribe?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errno.Classify(errno.ErrTranscription, fmt.Errorf("inference request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errno.Classify(errno.ErrTranscription,
			fmt.Errorf("inference server %s: %s", resp.Status, bytes.TrimSpace(body)))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errno.Classify(errno.ErrTranscription, fmt.Errorf("decode inference response: %w", err))
	}
	return out.Segments, nil
}

// Describe reports the backing model and whether this is the GPU path.
func (t *HTTPWhisper) Describe() (string, bool) {
	return t.model, t.gpu
}

// healthy probes the endpoint's health route.
func (t *HTTPWhisper) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Select probes the configured endpoints once at worker startup and returns
// the best available transcriber, preferring the GPU-optimized server. No
// healthy endpoint is a model-load failure: the worker must exit without
// claiming work.
func Select(ctx context.Context, cfg *config.InferenceConfig, language string) (*HTTPWhisper, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.GPUEndpoint != "" {
		gpu := NewHTTPWhisper(cfg.GPUEndpoint, cfg.Model, language, cfg.BatchSize, true, cfg.RequestTimeout)
		if gpu.healthy(probeCtx) {
			logger.Info("gpu inference endpoint selected", map[string]interface{}{
				"endpoint": cfg.GPUEndpoint,
				"model":    cfg.Model,
			})
			return gpu, nil
		}
		logger.Warn("gpu inference endpoint unavailable, trying standard", map[string]interface{}{
			"endpoint": cfg.GPUEndpoint,
		})
	}

	if cfg.Endpoint != "" {
		std := NewHTTPWhisper(cfg.Endpoint, cfg.Model, language, 0, false, cfg.RequestTimeout)
		if std.healthy(probeCtx) {
			logger.Info("standard inference endpoint selected", map[string]interface{}{
				"endpoint": cfg.Endpoint,
				"model":    cfg.Model,
			})
			return std, nil
		}
	}

	return nil, errno.Classify(errno.ErrModelLoad, fmt.Errorf("no healthy inference endpoint"))
}

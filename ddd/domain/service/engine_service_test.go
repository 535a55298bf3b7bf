package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/vo"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/pkg/errno"
)

// fakeChunker hands out a fixed number of synthetic chunks.
type fakeChunker struct {
	chunks     int
	splitCalls int
}

func (f *fakeChunker) Split(_ context.Context, _, _ string) ([]gateway.AudioChunk, error) {
	f.splitCalls++
	out := make([]gateway.AudioChunk, f.chunks)
	for i := range out {
		out[i] = gateway.AudioChunk{Index: i, Path: fmt.Sprintf("chunk_%04d.wav", i)}
	}
	return out, nil
}

func (f *fakeChunker) ProbeDuration(context.Context, string) (float64, error) {
	return float64(f.chunks * 30), nil
}

// fakeTranscriber returns one chunk-local segment per call and records which
// chunk paths it was asked to transcribe.
type fakeTranscriber struct {
	calls   []string
	failOn  string
	perPath map[string][]vo.Segment
}

func (f *fakeTranscriber) TranscribeChunk(_ context.Context, wavPath string) ([]vo.Segment, error) {
	f.calls = append(f.calls, wavPath)
	if wavPath == f.failOn {
		return nil, errors.New("inference exploded")
	}
	if segs, ok := f.perPath[wavPath]; ok {
		return segs, nil
	}
	return []vo.Segment{{Start: 0, End: 5, Text: "text for " + wavPath}}, nil
}

func (f *fakeTranscriber) Describe() (string, bool) { return "large-v3", false }

// progressLog records per-chunk progress callbacks.
type progressLog struct {
	updates []vo.ChunkInfo
}

func (p *progressLog) ReportTranscribing(_ context.Context, _ string, completed, total int) {
	p.updates = append(p.updates, vo.ChunkInfo{Current: completed, Total: total})
}

func TestEngineTranscribeCheckpointsEveryChunk(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	chk := &fakeChunker{chunks: 3}
	tr := &fakeTranscriber{}
	prog := &progressLog{}
	e := NewEngine(store, chk, tr, prog, 30, "en")

	got, err := e.Transcribe(ctx, "audio.mp3", "job-1", t.TempDir())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(got.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(got.Segments))
	}

	keys, err := store.ListKeys(ctx, "transcripts/job-1/segments/")
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("checkpoints = %v, want 3 entries", keys)
	}

	// Timestamps shifted by chunk index before checkpointing.
	body, err := store.GetObject(ctx, "transcripts/job-1/segments/chunk_0002.json")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	var cr vo.ChunkResult
	if err := json.Unmarshal(body, &cr); err != nil {
		t.Fatalf("unmarshal checkpoint: %v", err)
	}
	if cr.ChunkIndex != 2 || cr.Segments[0].Start != 60 {
		t.Fatalf("checkpoint = %+v, want index 2 start 60", cr)
	}

	if _, err := store.GetObject(ctx, "transcripts/job-1/full_transcript.json"); err != nil {
		t.Fatalf("completion marker missing: %v", err)
	}

	if len(prog.updates) != 3 || prog.updates[2] != (vo.ChunkInfo{Current: 3, Total: 3}) {
		t.Fatalf("progress updates = %+v", prog.updates)
	}
}

func TestEngineResumeIsIdempotentAfterCompletion(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	chk := &fakeChunker{chunks: 3}
	tr := &fakeTranscriber{}
	e := NewEngine(store, chk, tr, nil, 30, "en")

	first, err := e.Transcribe(ctx, "audio.mp3", "job-2", t.TempDir())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	tr.calls = nil
	chk.splitCalls = 0
	second, err := e.Resume(ctx, "audio.mp3", "job-2", t.TempDir())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("resume re-transcribed chunks: %v", tr.calls)
	}
	if chk.splitCalls != 0 {
		t.Fatal("resume re-split a completed job")
	}
	if len(second.Segments) != len(first.Segments) {
		t.Fatalf("resumed transcript differs: %d vs %d segments", len(second.Segments), len(first.Segments))
	}
}

func TestEngineResumeSkipsCheckpointedChunks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()

	// Chunk 2 was checkpointed by a previous attempt; its segments carry
	// already-shifted timestamps.
	pre := vo.ChunkResult{ChunkIndex: 2, Segments: []vo.Segment{{Start: 61, End: 65, Text: "recovered"}}}
	body, _ := json.Marshal(pre)
	if err := store.PutObject(ctx, "transcripts/job-3/segments/chunk_0002.json", body, "application/json"); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	chk := &fakeChunker{chunks: 3}
	tr := &fakeTranscriber{}
	e := NewEngine(store, chk, tr, nil, 30, "en")

	got, err := e.Resume(ctx, "audio.mp3", "job-3", t.TempDir())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(tr.calls) != 2 {
		t.Fatalf("transcribed %v, want only chunks 0 and 1", tr.calls)
	}
	for _, call := range tr.calls {
		if call == "chunk_0002.wav" {
			t.Fatal("checkpointed chunk was re-transcribed")
		}
	}

	if len(got.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(got.Segments))
	}
	// Merged output is globally time-ordered with the recovered segment
	// in its timeline position.
	for i := 1; i < len(got.Segments); i++ {
		if got.Segments[i-1].Start > got.Segments[i].Start {
			t.Fatalf("segments out of order: %+v", got.Segments)
		}
	}
	if got.Segments[2].Text != "recovered" {
		t.Fatalf("recovered segment misplaced: %+v", got.Segments)
	}
}

func TestEngineChunkFailureAbortsButKeepsCheckpoints(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	chk := &fakeChunker{chunks: 3}
	tr := &fakeTranscriber{failOn: "chunk_0001.wav"}
	e := NewEngine(store, chk, tr, nil, 30, "en")

	_, err := e.Transcribe(ctx, "audio.mp3", "job-4", t.TempDir())
	if err == nil {
		t.Fatal("Transcribe() = nil error, want failure")
	}
	if !errors.Is(err, errno.ErrTranscription) {
		t.Fatalf("error = %v, want ErrTranscription class", err)
	}

	keys, _ := store.ListKeys(ctx, "transcripts/job-4/segments/")
	if len(keys) != 1 {
		t.Fatalf("checkpoints after failure = %v, want chunk 0 only", keys)
	}
	if _, err := store.GetObject(ctx, "transcripts/job-4/full_transcript.json"); !errno.IsNotFound(err) {
		t.Fatalf("completion marker written after failure: err = %v", err)
	}
}

func TestEngineMergeSortsAcrossChunks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	chk := &fakeChunker{chunks: 2}
	// Chunk 0 has a segment whose start overlaps into chunk 1's window
	// after shifting; the merge must interleave correctly.
	tr := &fakeTranscriber{perPath: map[string][]vo.Segment{
		"chunk_0000.wav": {
			{Start: 0, End: 10, Text: "first"},
			{Start: 29.5, End: 31, Text: "straddler"},
		},
		"chunk_0001.wav": {
			{Start: 0.2, End: 8, Text: "second-chunk-lead"},
		},
	}}
	e := NewEngine(store, chk, tr, nil, 30, "en")

	got, err := e.Transcribe(ctx, "audio.mp3", "job-5", t.TempDir())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	want := []string{"first", "straddler", "second-chunk-lead"}
	for i, w := range want {
		if got.Segments[i].Text != w {
			t.Fatalf("segment %d = %q, want %q", i, got.Segments[i].Text, w)
		}
	}
	if got.Segments[2].Start != 30.2 {
		t.Fatalf("shifted start = %v, want 30.2", got.Segments[2].Start)
	}
}

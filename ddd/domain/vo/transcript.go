package vo

import (
	"sort"
	"time"
)

// Word is one aligned word with global-timeline boundaries in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one utterance with global-timeline boundaries in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Shift moves the segment and its words by offset seconds. Chunk transcribers
// return chunk-local timestamps; the engine shifts them onto the job's global
// timeline before persisting.
func (s *Segment) Shift(offset float64) {
	s.Start += offset
	s.End += offset
	for i := range s.Words {
		s.Words[i].Start += offset
		s.Words[i].End += offset
	}
}

// ChunkResult is the persisted checkpoint for one chunk. Idempotently
// overwritable: a redelivered job rewrites the same key with the same content.
type ChunkResult struct {
	ChunkIndex int       `json:"chunk_index"`
	Segments   []Segment `json:"segments"`
}

// Transcript is the merged, terminal output of one job.
type Transcript struct {
	Segments      []Segment `json:"segments"`
	Language      string    `json:"language"`
	TranscribedAt time.Time `json:"transcribed_at"`
}

// SortSegmentsByStart orders segments on the global timeline. Chunks are
// transcribed independently, so merge order is not time order.
func SortSegmentsByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

// ChunkInfo reports chunk progress inside a progress document.
type ChunkInfo struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

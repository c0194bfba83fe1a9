package transcribe

import (
	"context"
)

// Word is a word-level transcription segment with clip-relative timing in
// seconds
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the output of a transcription engine before filtering and
// sentence grouping
type Result struct {
	Text     string
	Language string
	Words    []Word
	Engine   string
}

// Request describes the clip to transcribe. LocalPath always points at the
// original capture file on disk; SignedURL is set when the clip is reachable
// from an external engine through blob storage.
type Request struct {
	Filename  string
	LocalPath string
	SignedURL string
}

// Engine turns one audio clip into timed words
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

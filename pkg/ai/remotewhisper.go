package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/chronicae/chronicler/pkg/config"
)

// RemoteFailureKind classifies why a remote transcription attempt failed, so
// callers can log GPU-box outages differently from real errors. Every kind
// triggers the same local fallback.
type RemoteFailureKind string

const (
	RemoteFailureTimeout RemoteFailureKind = "timeout"
	RemoteFailureNetwork RemoteFailureKind = "network"
	RemoteFailureOther   RemoteFailureKind = "other"
)

// RemoteError wraps a remote engine failure with its classification
type RemoteError struct {
	Kind RemoteFailureKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote whisper %s: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Word is a single transcribed word with its timing inside the clip
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// RemoteTranscription is the remote engine's response shape
type RemoteTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Words    []Word `json:"words"`
}

// RemoteWhisperClient calls a GPU-backed whisper server. The server pulls the
// audio itself through a signed URL, so large clips never pass through this
// process. Jobs can queue behind other tenants for a long time, hence the
// generous timeout.
type RemoteWhisperClient struct {
	baseURL string
	client  *http.Client
}

// NewRemoteWhisperClient creates a remote whisper client, or nil when no
// remote URL is configured
func NewRemoteWhisperClient(cfg *config.TranscriptionConfig) *RemoteWhisperClient {
	if cfg == nil || cfg.RemoteURL == "" {
		return nil
	}
	timeout := cfg.RemoteTimeout
	if timeout == 0 {
		timeout = 45 * time.Minute
	}
	return &RemoteWhisperClient{
		baseURL: cfg.RemoteURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteTranscribeRequest struct {
	FileURL string `json:"file_url"`
}

// Transcribe asks the remote server to fetch and transcribe the clip at
// fileURL. Failures come back as *RemoteError.
func (c *RemoteWhisperClient) Transcribe(ctx context.Context, fileURL string) (*RemoteTranscription, error) {
	b, err := json.Marshal(remoteTranscribeRequest{FileURL: fileURL})
	if err != nil {
		return nil, &RemoteError{Kind: RemoteFailureOther, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/transcribe", bytes.NewReader(b))
	if err != nil {
		return nil, &RemoteError{Kind: RemoteFailureOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: classifyRemoteFailure(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &RemoteError{
			Kind: RemoteFailureOther,
			Err:  fmt.Errorf("remote whisper returned status %d", resp.StatusCode),
		}
	}

	var out RemoteTranscription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &RemoteError{Kind: RemoteFailureOther, Err: err}
	}
	return &out, nil
}

// Unload asks the remote server to drop its loaded model and free GPU memory.
// Called after a session finishes processing; failures are informational only.
func (c *RemoteWhisperClient) Unload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/unload", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("remote whisper unload returned status %d", resp.StatusCode)
	}
	return nil
}

func classifyRemoteFailure(err error) RemoteFailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return RemoteFailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return RemoteFailureTimeout
		}
		return RemoteFailureNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return RemoteFailureNetwork
	}
	return RemoteFailureOther
}

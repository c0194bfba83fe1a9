package transcribe

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/pkg/ai"
)

// RemoteClient is the slice of the remote whisper API the cascade needs
type RemoteClient interface {
	Transcribe(ctx context.Context, fileURL string) (*ai.RemoteTranscription, error)
}

// CascadeEngine tries the remote GPU engine first and falls back to the
// local one inside the same attempt. A remote outage therefore degrades
// throughput, never correctness, and never burns a job retry.
type CascadeEngine struct {
	remote RemoteClient
	local  Engine
	logger *zap.Logger
}

// NewCascadeEngine wires the remote-then-local cascade. remote may be nil,
// in which case every clip goes straight to the local engine.
func NewCascadeEngine(remote RemoteClient, local Engine, logger *zap.Logger) *CascadeEngine {
	return &CascadeEngine{remote: remote, local: local, logger: logger}
}

// Name identifies the engine in logs and clip rows
func (e *CascadeEngine) Name() string { return "whisper-cascade" }

// Transcribe runs the cascade for one clip
func (e *CascadeEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if e.remote != nil && req.SignedURL != "" {
		out, err := e.remote.Transcribe(ctx, req.SignedURL)
		if err == nil {
			result := &Result{
				Text:     out.Text,
				Language: out.Language,
				Engine:   "whisper-remote",
				Words:    make([]Word, 0, len(out.Words)),
			}
			for _, w := range out.Words {
				result.Words = append(result.Words, Word{Start: w.Start, End: w.End, Text: w.Word})
			}
			return result, nil
		}

		var remoteErr *ai.RemoteError
		if errors.As(err, &remoteErr) {
			switch remoteErr.Kind {
			case ai.RemoteFailureTimeout:
				e.logger.Warn("⏱️ Remote engine timed out, falling back to local",
					zap.String("filename", req.Filename))
			case ai.RemoteFailureNetwork:
				e.logger.Warn("🔌 Remote engine unreachable, falling back to local",
					zap.String("filename", req.Filename))
			default:
				e.logger.Warn("Remote engine failed, falling back to local",
					zap.String("filename", req.Filename), zap.Error(remoteErr.Err))
			}
		} else {
			e.logger.Warn("Remote engine failed, falling back to local",
				zap.String("filename", req.Filename), zap.Error(err))
		}
	}

	return e.local.Transcribe(ctx, req)
}

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/pkg/config"
)

// LocalEngine runs whisper.cpp as a subprocess. The binary releases its
// model memory on exit, so nothing stays resident between clips, which is
// the point on a host that also records audio.
type LocalEngine struct {
	cfg    *config.TranscriptionConfig
	ffmpeg *media.Runner
	logger *zap.Logger
}

// NewLocalEngine creates the local whisper.cpp engine
func NewLocalEngine(cfg *config.TranscriptionConfig, ffmpeg *media.Runner, logger *zap.Logger) *LocalEngine {
	return &LocalEngine{cfg: cfg, ffmpeg: ffmpeg, logger: logger}
}

// Name identifies the engine in logs and clip rows
func (e *LocalEngine) Name() string { return "whisper-local" }

// whisperOutput is the shape of whisper.cpp's -oj result file
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe converts the clip to 16kHz mono WAV, runs whisper.cpp with
// word-level timestamps and reads back its JSON result file
func (e *LocalEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	wavPath := req.LocalPath + ".temp.wav"
	if err := e.ffmpeg.NormalizeToWAV(ctx, req.LocalPath, wavPath); err != nil {
		return nil, fmt.Errorf("failed to prepare audio for %s: %w", req.Filename, err)
	}
	defer os.Remove(wavPath)

	// whisper.cpp writes its JSON next to the input
	jsonPath := wavPath + ".json"
	defer os.Remove(jsonPath)

	args := []string{
		"-m", e.cfg.WhisperModel,
		"-f", wavPath,
		"-l", e.cfg.Language,
		"-t", fmt.Sprintf("%d", e.cfg.Threads),
		"-oj",
		"-ml", "1",
		"--split-on-word",

		// Thresholds tuned against silence hallucinations and word loops
		"--no-speech-thold", "0.65",
		"--logprob-thold", "-0.9",
		"--entropy-thold", "2.2",
		"--suppress-nst",
	}

	cmd := exec.CommandContext(ctx, e.cfg.WhisperBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("whisper failed for %s: %s", req.Filename, msg)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper produced no result file for %s: %w", req.Filename, err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output for %s: %w", req.Filename, err)
	}

	result := &Result{
		Language: e.cfg.Language,
		Engine:   e.Name(),
	}
	texts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Words = append(result.Words, Word{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
		texts = append(texts, text)
	}
	result.Text = strings.Join(texts, " ")

	e.logger.Info("🎙️ Local transcription completed",
		zap.String("filename", req.Filename),
		zap.Int("words", len(result.Words)),
	)
	return result, nil
}

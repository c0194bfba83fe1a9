package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// MixInput is one audio source of a mix step with its placement delay from
// the start of the session timeline
type MixInput struct {
	Path    string
	DelayMs int64
}

// Runner shells out to ffmpeg. All intermediate mixing happens in 32-bit
// float WAV so repeated accumulator passes never clip or lose precision; only
// the final master encode is lossy.
type Runner struct {
	bin string
}

// NewRunner creates an ffmpeg runner. An empty bin falls back to the ffmpeg
// on PATH.
func NewRunner(bin string) *Runner {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Runner{bin: bin}
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, lastLines(stderr.String(), 5))
	}
	return nil
}

// NormalizeToWAV converts any capture format to the 16kHz mono 16-bit WAV
// the transcription engines expect
func (r *Runner) NormalizeToWAV(ctx context.Context, inPath, outPath string) error {
	return r.run(ctx,
		"-y", "-i", inPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	)
}

// MixBatch overlays the inputs onto a shared timeline, delaying each by its
// offset, and writes a float WAV. With a single input no amix is needed and
// only the format conversion runs.
func (r *Runner) MixBatch(ctx context.Context, inputs []MixInput, outPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("mix batch needs at least one input")
	}

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in.Path)
	}

	// aresample=async=1 pads tiny capture drift so the adelay offsets stay
	// exact across batches
	var filter strings.Builder
	if len(inputs) == 1 {
		delay := inputs[0].DelayMs
		filter.WriteString(fmt.Sprintf("[0:a]aresample=async=1,adelay=%d|%d[d0];[d0]", delay, delay))
		filter.WriteString("aformat=sample_fmts=flt:sample_rates=48000:channel_layouts=stereo[out]")
	} else {
		labels := make([]string, 0, len(inputs))
		for i, in := range inputs {
			label := fmt.Sprintf("[a%d]", i)
			filter.WriteString(fmt.Sprintf("[%d:a]aresample=async=1,adelay=%d|%d%s;", i, in.DelayMs, in.DelayMs, label))
			labels = append(labels, label)
		}
		filter.WriteString(strings.Join(labels, ""))
		// normalize=0 keeps per-speaker levels intact across batches
		filter.WriteString(fmt.Sprintf("amix=inputs=%d:dropout_transition=0:normalize=0[mix];", len(inputs)))
		filter.WriteString("[mix]aformat=sample_fmts=flt:sample_rates=48000:channel_layouts=stereo[out]")
	}

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		"-c:a", "pcm_f32le",
		"-ar", "48000",
		outPath,
	)
	return r.run(ctx, args...)
}

// EncodeMaster loudness-normalizes the accumulated mix and encodes the final
// MP3 master
func (r *Runner) EncodeMaster(ctx context.Context, inPath, outPath, bitrate string) error {
	if bitrate == "" {
		bitrate = "192k"
	}
	return r.run(ctx,
		"-y", "-i", inPath,
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		outPath,
	)
}

// FileSize returns the byte size of a local file
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

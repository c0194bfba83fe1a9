package mixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/domain/repositories"
	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/internal/infrastructure/storage"
	"github.com/chronicae/chronicler/pkg/config"
)

// Blobs is the slice of blob storage the mixer uses
type Blobs interface {
	DownloadFile(ctx context.Context, sessionID, filename, destPath string) error
	Replace(ctx context.Context, key, path string) error
}

// AudioMixer runs the actual audio work. media.Runner is the ffmpeg-backed
// implementation.
type AudioMixer interface {
	MixBatch(ctx context.Context, inputs []media.MixInput, outPath string) error
	EncodeMaster(ctx context.Context, inPath, outPath, bitrate string) error
}

// Service builds the time-aligned master track of a finished session. Clips
// are overlaid at their capture offsets in batches, folded into a float WAV
// accumulator, then loudness-normalized into an MP3 master.
type Service struct {
	clips    repositories.ClipRepository
	sessions repositories.SessionRepository
	blobs    Blobs
	ffmpeg   AudioMixer
	cfg      *config.MixerConfig
	recDir   string
	minBytes int64
	logger   *zap.Logger
}

// NewService wires the session mixer. minClipBytes is the same floor the
// transcription stage uses; anything smaller is capture noise.
func NewService(
	clips repositories.ClipRepository,
	sessions repositories.SessionRepository,
	blobs Blobs,
	ffmpeg AudioMixer,
	cfg *config.MixerConfig,
	recordingsDir string,
	minClipBytes int64,
	logger *zap.Logger,
) *Service {
	return &Service{
		clips:    clips,
		sessions: sessions,
		blobs:    blobs,
		ffmpeg:   ffmpeg,
		cfg:      cfg,
		recDir:   recordingsDir,
		minBytes: minClipBytes,
		logger:   logger,
	}
}

// MixSession produces and uploads the master track for a session, returning
// its storage key. A clip whose audio cannot be found is logged and left out
// rather than sinking the whole master.
func (s *Service) MixSession(ctx context.Context, sessionID string) (string, error) {
	log := s.logger.With(zap.String("session_id", sessionID))

	clips, err := s.clips.ListBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to list clips for session %s: %w", sessionID, err)
	}
	if len(clips) == 0 {
		return "", fmt.Errorf("session %s has no clips to mix", sessionID)
	}

	tempDir := filepath.Join(s.cfg.TempDir, sessionID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	usable, paths := s.collectClips(ctx, clips, tempDir, log)
	if len(usable) == 0 {
		return "", fmt.Errorf("no usable clip audio for session %s", sessionID)
	}

	placements := ComputeDelays(usable)

	accPath, err := s.foldBatches(ctx, placements, paths, tempDir, log)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	masterPath := filepath.Join(s.cfg.OutputDir, sessionID+".mp3")
	if err := s.ffmpeg.EncodeMaster(ctx, accPath, masterPath, s.cfg.MasterBitrate); err != nil {
		return "", fmt.Errorf("failed to encode master for session %s: %w", sessionID, err)
	}

	key := storage.MasterKey(sessionID)
	if err := s.blobs.Replace(ctx, key, masterPath); err != nil {
		return "", fmt.Errorf("failed to upload master for session %s: %w", sessionID, err)
	}

	if err := s.recordMaster(ctx, sessionID, key); err != nil {
		return "", err
	}

	log.Info("🎵 Master track built",
		zap.Int("clips", len(usable)),
		zap.String("key", key),
	)
	return key, nil
}

// collectClips resolves a local audio path for every clip, restoring lost
// files from storage. Clips with no audio anywhere, or below the minimum
// size, are dropped from the mix.
func (s *Service) collectClips(ctx context.Context, clips []entities.Clip, tempDir string, log *zap.Logger) ([]entities.Clip, map[string]string) {
	usable := make([]entities.Clip, 0, len(clips))
	paths := make(map[string]string, len(clips))

	for _, clip := range clips {
		path := filepath.Join(s.recDir, clip.Filename)
		if size, err := media.FileSize(path); err != nil || size == 0 {
			restored := filepath.Join(tempDir, clip.Filename)
			if err := s.blobs.DownloadFile(ctx, clip.SessionID, clip.Filename, restored); err != nil {
				log.Warn("Clip audio unavailable, excluding from master",
					zap.String("filename", clip.Filename), zap.Error(err))
				continue
			}
			path = restored
		}
		if size, err := media.FileSize(path); err != nil || size < s.minBytes {
			log.Warn("Clip audio too small, excluding from master",
				zap.String("filename", clip.Filename))
			continue
		}
		usable = append(usable, clip)
		paths[clip.Filename] = path
	}
	return usable, paths
}

// foldBatches mixes placements batch by batch into a single accumulator WAV.
// The accumulator enters each later batch as input zero with no delay, so
// already-placed audio keeps its position.
func (s *Service) foldBatches(ctx context.Context, placements []Placement, paths map[string]string, tempDir string, log *zap.Logger) (string, error) {
	accPath := filepath.Join(tempDir, "accumulator.wav")
	ranges := BatchRanges(len(placements), s.cfg.BatchSize)

	for i, r := range ranges {
		inputs := make([]media.MixInput, 0, r[1]-r[0]+1)
		if i > 0 {
			inputs = append(inputs, media.MixInput{Path: accPath, DelayMs: 0})
		}
		for _, p := range placements[r[0]:r[1]] {
			inputs = append(inputs, media.MixInput{Path: paths[p.Filename], DelayMs: p.DelayMs})
		}

		stepPath := filepath.Join(tempDir, fmt.Sprintf("step_%03d.wav", i))
		if err := s.ffmpeg.MixBatch(ctx, inputs, stepPath); err != nil {
			return "", fmt.Errorf("failed to mix batch %d/%d: %w", i+1, len(ranges), err)
		}
		if err := os.Rename(stepPath, accPath); err != nil {
			return "", fmt.Errorf("failed to advance accumulator: %w", err)
		}

		log.Info("Mixed batch",
			zap.Int("batch", i+1),
			zap.Int("batches", len(ranges)),
			zap.Int("clips", r[1]-r[0]),
		)
	}
	return accPath, nil
}

func (s *Service) recordMaster(ctx context.Context, sessionID, key string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	session.MasterObject = &key
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to record master key on session %s: %w", sessionID, err)
	}
	return nil
}

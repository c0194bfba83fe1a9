package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/domain/repositories"
	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/internal/infrastructure/queue"
	"github.com/chronicae/chronicler/internal/infrastructure/storage"
	"github.com/chronicae/chronicler/internal/usecase/transcribe"
	"github.com/chronicae/chronicler/pkg/ai"
	"github.com/chronicae/chronicler/pkg/config"
)

// Blobs is the slice of blob storage the pipeline uses
type Blobs interface {
	FindClipKey(ctx context.Context, sessionID, filename string) (string, error)
	DownloadFile(ctx context.Context, sessionID, filename, destPath string) error
	UploadFile(ctx context.Context, key, path string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Enqueuer pushes jobs onto a queue
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Corrector cleans transcript lines through an LLM. nil means correction is
// disabled and clips finalize straight from the raw transcript.
type Corrector interface {
	Correct(ctx context.Context, lines []ai.Line, sceneContext string) ([]ai.Line, error)
}

// Service orchestrates the two pipeline stages. Every handler is an
// idempotent replay target: the clip row's guarded status transitions decide
// what still needs doing, never the job itself.
type Service struct {
	clips        repositories.ClipRepository
	blobs        Blobs
	engine       transcribe.Engine
	corrector    Corrector
	resolver     ContextResolver
	correctQueue Enqueuer
	cfg          *config.PipelineConfig
	signedURLTTL time.Duration
	logger       *zap.Logger
}

// NewService wires the pipeline orchestrator
func NewService(
	clips repositories.ClipRepository,
	blobs Blobs,
	engine transcribe.Engine,
	corrector Corrector,
	resolver ContextResolver,
	correctQueue Enqueuer,
	cfg *config.PipelineConfig,
	signedURLTTL time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		clips:        clips,
		blobs:        blobs,
		engine:       engine,
		corrector:    corrector,
		resolver:     resolver,
		correctQueue: correctQueue,
		cfg:          cfg,
		signedURLTTL: signedURLTTL,
		logger:       logger,
	}
}

// HandleTranscribeJob processes one transcription job end to end
func (s *Service) HandleTranscribeJob(ctx context.Context, job *queue.Job) error {
	log := s.logger.With(zap.String("filename", job.Filename), zap.String("session_id", job.SessionID))

	clip, err := s.clips.GetByFilename(ctx, job.Filename)
	if err != nil {
		return fmt.Errorf("failed to load clip %s: %w", job.Filename, err)
	}
	if clip == nil {
		log.Warn("Job references unknown clip, dropping")
		return nil
	}
	if clip.IsDone() {
		log.Info("Clip already done, nothing to do", zap.String("status", string(clip.Status)))
		return nil
	}

	// A crash between transcription and correction leaves the clip
	// TRANSCRIBED with its transcript stored. Re-enqueue correction instead
	// of paying for a second transcription.
	if clip.Status == entities.ClipStatusTranscribed {
		log.Info("Clip already transcribed, re-enqueueing correction")
		return s.enqueueCorrection(ctx, clip)
	}

	claimed, err := s.clips.UpdateStatusGuarded(ctx, clip.Filename,
		[]entities.ClipStatus{entities.ClipStatusPending, entities.ClipStatusProcessing},
		entities.ClipStatusProcessing, nil)
	if err != nil {
		return fmt.Errorf("failed to claim clip %s: %w", clip.Filename, err)
	}
	if !claimed {
		log.Info("Clip claimed by another worker, dropping")
		return nil
	}

	localPath, err := s.ensureLocalFile(ctx, clip)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No audio anywhere: retrying cannot help
			log.Error("Clip audio missing locally and in storage")
			return s.clips.MarkError(ctx, clip.Filename, "audio file missing locally and in storage")
		}
		return err
	}

	if size, err := media.FileSize(localPath); err == nil && size < s.cfg.MinClipBytes {
		log.Info("Clip below minimum size, skipping", zap.Int64("bytes", size))
		if err := s.clips.MarkSkipped(ctx, clip.Filename, fmt.Sprintf("clip too small: %d bytes", size)); err != nil {
			return err
		}
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove undersized clip audio", zap.Error(err))
		}
		return nil
	}

	signedURL := s.signedClipURL(ctx, clip, localPath, log)

	result, err := s.engine.Transcribe(ctx, transcribe.Request{
		Filename:  clip.Filename,
		LocalPath: localPath,
		SignedURL: signedURL,
	})
	if err != nil {
		return fmt.Errorf("transcription failed for %s: %w", clip.Filename, err)
	}

	words := transcribe.FilterWords(result.Words)
	sentences := transcribe.CleanSentences(transcribe.GroupWordsIntoSentences(words))
	if len(sentences) == 0 {
		log.Info("No speech left after filtering, skipping clip")
		return s.clips.MarkSkipped(ctx, clip.Filename, "no speech after hallucination filtering")
	}

	segJSON, err := json.Marshal(sentences)
	if err != nil {
		return fmt.Errorf("failed to encode transcript for %s: %w", clip.Filename, err)
	}
	rawJSON, err := json.Marshal(result.Words)
	if err != nil {
		return fmt.Errorf("failed to encode raw transcript for %s: %w", clip.Filename, err)
	}

	stored, err := s.clips.UpdateStatusGuarded(ctx, clip.Filename,
		[]entities.ClipStatus{entities.ClipStatusProcessing},
		entities.ClipStatusTranscribed,
		map[string]interface{}{
			"segment_text":     segJSON,
			"raw_segment_text": rawJSON,
		})
	if err != nil {
		return fmt.Errorf("failed to store transcript for %s: %w", clip.Filename, err)
	}
	if !stored {
		log.Warn("Clip moved out of PROCESSING underneath us, dropping result")
		return nil
	}
	clip.Status = entities.ClipStatusTranscribed
	clip.SegmentText = segJSON

	log.Info("📝 Transcription stored",
		zap.String("engine", result.Engine),
		zap.Int("sentences", len(sentences)),
	)

	s.removeLocalIfArchived(ctx, clip, localPath, log)

	return s.enqueueCorrection(ctx, clip)
}

// HandleCorrectJob finalizes a transcribed clip, passing its sentences
// through the correction model when one is configured
func (s *Service) HandleCorrectJob(ctx context.Context, job *queue.Job) error {
	log := s.logger.With(zap.String("filename", job.Filename), zap.String("session_id", job.SessionID))

	clip, err := s.clips.GetByFilename(ctx, job.Filename)
	if err != nil {
		return fmt.Errorf("failed to load clip %s: %w", job.Filename, err)
	}
	if clip == nil {
		log.Warn("Correction job references unknown clip, dropping")
		return nil
	}
	if clip.IsDone() {
		log.Info("Clip already done, nothing to do", zap.String("status", string(clip.Status)))
		return nil
	}
	if clip.Status != entities.ClipStatusTranscribed {
		log.Warn("Correction job for clip without transcript, dropping",
			zap.String("status", string(clip.Status)))
		return nil
	}

	sentences, err := clip.Segments()
	if err != nil {
		return fmt.Errorf("failed to decode transcript for %s: %w", clip.Filename, err)
	}

	sessCtx := s.resolveContext(ctx, clip.SessionID, log)

	if s.corrector != nil && len(sentences) > 0 {
		lines := make([]ai.Line, 0, len(sentences))
		for _, seg := range sentences {
			lines = append(lines, ai.Line{Start: seg.Start, End: seg.End, Text: seg.Text})
		}
		corrected, err := s.corrector.Correct(ctx, lines, sessCtx.Scene())
		if err != nil {
			return fmt.Errorf("correction failed for %s: %w", clip.Filename, err)
		}
		for i := range sentences {
			sentences[i].Text = corrected[i].Text
		}
	}

	return s.finalize(ctx, clip, sentences, sessCtx, log)
}

// FinalizeWithoutCorrection moves a transcribed clip straight to PROCESSED.
// Used when no corrector is configured.
func (s *Service) FinalizeWithoutCorrection(ctx context.Context, clip *entities.Clip) error {
	log := s.logger.With(zap.String("filename", clip.Filename))
	sentences, err := clip.Segments()
	if err != nil {
		return fmt.Errorf("failed to decode transcript for %s: %w", clip.Filename, err)
	}
	return s.finalize(ctx, clip, sentences, s.resolveContext(ctx, clip.SessionID, log), log)
}

// OnTranscribeExhausted marks a clip failed when its job ran out of attempts
func (s *Service) OnTranscribeExhausted(ctx context.Context, job *queue.Job, cause error) {
	s.logger.Error("Clip failed all transcription attempts",
		zap.String("filename", job.Filename), zap.Error(cause))
	if err := s.clips.MarkError(ctx, job.Filename, cause.Error()); err != nil {
		s.logger.Error("Failed to record clip error", zap.String("filename", job.Filename), zap.Error(err))
	}
}

// OnCorrectExhausted marks a clip failed when correction ran out of attempts.
// The stored raw transcript stays on the row for operator diagnosis.
func (s *Service) OnCorrectExhausted(ctx context.Context, job *queue.Job, cause error) {
	s.logger.Error("Clip failed all correction attempts",
		zap.String("filename", job.Filename), zap.Error(cause))
	if err := s.clips.MarkError(ctx, job.Filename, cause.Error()); err != nil {
		s.logger.Error("Failed to record clip error", zap.String("filename", job.Filename), zap.Error(err))
	}
}

func (s *Service) finalize(ctx context.Context, clip *entities.Clip, sentences []entities.Segment, sessCtx *entities.SessionContext, log *zap.Logger) error {
	segJSON, err := json.Marshal(sentences)
	if err != nil {
		return fmt.Errorf("failed to encode final transcript for %s: %w", clip.Filename, err)
	}

	fields := map[string]interface{}{
		"segment_text": segJSON,
		"speaker_name": sessCtx.SpeakerName(clip.SpeakerID),
	}
	if sessCtx != nil {
		fields["location_macro"] = sessCtx.LocationMacro
		fields["location_micro"] = sessCtx.LocationMicro
	}

	done, err := s.clips.UpdateStatusGuarded(ctx, clip.Filename,
		[]entities.ClipStatus{entities.ClipStatusTranscribed},
		entities.ClipStatusProcessed, fields)
	if err != nil {
		return fmt.Errorf("failed to finalize clip %s: %w", clip.Filename, err)
	}
	if !done {
		log.Info("Clip already finalized elsewhere, dropping")
		return nil
	}

	log.Info("✅ Clip finalized", zap.Int("sentences", len(sentences)))
	return nil
}

func (s *Service) enqueueCorrection(ctx context.Context, clip *entities.Clip) error {
	if s.corrector == nil {
		return s.FinalizeWithoutCorrection(ctx, clip)
	}
	return s.correctQueue.Enqueue(ctx, &queue.Job{
		SessionID: clip.SessionID,
		Filename:  clip.Filename,
	})
}

// ensureLocalFile returns a readable local path for the clip, restoring it
// from blob storage when the capture host lost it
func (s *Service) ensureLocalFile(ctx context.Context, clip *entities.Clip) (string, error) {
	localPath := filepath.Join(s.cfg.RecordingsDir, clip.Filename)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	s.logger.Info("Local clip missing, restoring from storage",
		zap.String("filename", clip.Filename))
	if err := s.blobs.DownloadFile(ctx, clip.SessionID, clip.Filename, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// signedClipURL makes the clip reachable for the remote engine, uploading it
// first when only the local copy exists. Failures here are not fatal: the
// cascade just runs locally.
func (s *Service) signedClipURL(ctx context.Context, clip *entities.Clip, localPath string, log *zap.Logger) string {
	key, err := s.blobs.FindClipKey(ctx, clip.SessionID, clip.Filename)
	if errors.Is(err, storage.ErrNotFound) {
		key = storage.ClipKey(clip.SessionID, clip.Filename)
		if upErr := s.blobs.UploadFile(ctx, key, localPath); upErr != nil {
			log.Warn("Failed to archive clip, remote engine unavailable for it", zap.Error(upErr))
			return ""
		}
	} else if err != nil {
		log.Warn("Failed to resolve clip key, remote engine unavailable for it", zap.Error(err))
		return ""
	}

	url, err := s.blobs.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		log.Warn("Failed to sign clip URL, remote engine unavailable for it", zap.Error(err))
		return ""
	}
	return url
}

// removeLocalIfArchived frees capture-host disk space, but only once the
// clip verifiably exists in blob storage
func (s *Service) removeLocalIfArchived(ctx context.Context, clip *entities.Clip, localPath string, log *zap.Logger) {
	if _, err := s.blobs.FindClipKey(ctx, clip.SessionID, clip.Filename); err != nil {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove local clip", zap.Error(err))
	}
}

func (s *Service) resolveContext(ctx context.Context, sessionID string, log *zap.Logger) *entities.SessionContext {
	if s.resolver == nil {
		return nil
	}
	sessCtx, err := s.resolver.Resolve(ctx, sessionID)
	if err != nil {
		log.Warn("Failed to resolve session context", zap.Error(err))
		return nil
	}
	return sessCtx
}

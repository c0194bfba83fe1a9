package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/domain/repositories"
	"github.com/chronicae/chronicler/internal/infrastructure/queue"
	"github.com/chronicae/chronicler/pkg/config"
)

// ContextStore persists per-session narrative context
type ContextStore interface {
	Save(ctx context.Context, sessionID string, sessCtx *entities.SessionContext) error
	Resolve(ctx context.Context, sessionID string) (*entities.SessionContext, error)
	Delete(ctx context.Context, sessionID string) error
}

// Gate pauses and resumes pipeline work around live recordings
type Gate interface {
	RecordingStarted(ctx context.Context) error
	RecordingStopped(ctx context.Context) error
}

// Enqueuer pushes jobs onto a queue
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// JobQueue is the queue introspection surface the session layer needs
type JobQueue interface {
	Name() string
	GetJobCounts(ctx context.Context) (queue.Counts, error)
	CountSessionJobs(ctx context.Context, sessionID string) (int64, error)
	RemoveSessionJobs(ctx context.Context, sessionID string) (int64, error)
}

// Mixer builds a session's master track
type Mixer interface {
	MixSession(ctx context.Context, sessionID string) (string, error)
}

// Unloader releases remote engine resources after a session drains
type Unloader interface {
	Unload(ctx context.Context) error
}

// Service drives the session lifecycle: capture, queue drain, mix
type Service struct {
	sessions        repositories.SessionRepository
	clips           repositories.ClipRepository
	contexts        ContextStore
	gate            Gate
	transcribeQueue Enqueuer
	queues          []JobQueue
	mixer           Mixer
	unloader        Unloader
	cfg             *config.PipelineConfig
	logger          *zap.Logger
}

// NewService wires the session lifecycle service. unloader may be nil when no
// remote engine is configured.
func NewService(
	sessions repositories.SessionRepository,
	clips repositories.ClipRepository,
	contexts ContextStore,
	gate Gate,
	transcribeQueue Enqueuer,
	queues []JobQueue,
	mixer Mixer,
	unloader Unloader,
	cfg *config.PipelineConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		sessions:        sessions,
		clips:           clips,
		contexts:        contexts,
		gate:            gate,
		transcribeQueue: transcribeQueue,
		queues:          queues,
		mixer:           mixer,
		unloader:        unloader,
		cfg:             cfg,
		logger:          logger,
	}
}

// Start opens a new recording session, stores its narrative context and
// pauses heavy pipeline work for the duration of the capture
func (s *Service) Start(ctx context.Context, campaign string, sessCtx *entities.SessionContext) (*entities.RecordingSession, error) {
	session := entities.NewRecordingSession(campaign)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	if sessCtx != nil {
		if err := s.contexts.Save(ctx, session.ID, sessCtx); err != nil {
			return nil, apperrors.ErrInternal(err)
		}
	}

	if err := s.gate.RecordingStarted(ctx); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("🎙️ Session started",
		zap.String("session_id", session.ID),
		zap.String("campaign", campaign),
	)
	return session, nil
}

// IngestClip registers a captured clip and queues its transcription. The
// transcription queue is paused while the session records, so the job waits
// until the table stops talking.
func (s *Service) IngestClip(ctx context.Context, sessionID, speakerID, filename string, capturedAt int64) (*entities.Clip, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}
	if session.Status == entities.SessionStatusComplete {
		return nil, apperrors.ErrSessionInvalidState(sessionID, string(session.Status))
	}

	existing, err := s.clips.GetByFilename(ctx, filename)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if existing != nil {
		return nil, apperrors.ErrClipAlreadyExists(filename).
			WithDetail("session_id", existing.SessionID)
	}

	clip := entities.NewClip(filename, sessionID, speakerID, capturedAt)
	if err := s.clips.Create(ctx, clip); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	if err := s.transcribeQueue.Enqueue(ctx, &queue.Job{
		SessionID: sessionID,
		Filename:  filename,
	}); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("📥 Clip ingested",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.String("speaker_id", speakerID),
	)
	return clip, nil
}

// UpdateContext replaces a session's narrative context. Clips finalized
// before the update keep their old snapshots.
func (s *Service) UpdateContext(ctx context.Context, sessionID string, sessCtx *entities.SessionContext) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.ErrInternal(err)
	}
	if session == nil {
		return apperrors.ErrSessionNotFound(sessionID)
	}
	if err := s.contexts.Save(ctx, sessionID, sessCtx); err != nil {
		return apperrors.ErrInternal(err)
	}
	return nil
}

// AddNote attaches a timestamped note to a session
func (s *Service) AddNote(ctx context.Context, sessionID, authorID, content string, notedAt int64) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.ErrInternal(err)
	}
	if session == nil {
		return apperrors.ErrSessionNotFound(sessionID)
	}
	if notedAt == 0 {
		notedAt = time.Now().UnixMilli()
	}
	note := &entities.SessionNote{
		SessionID: sessionID,
		AuthorID:  authorID,
		Content:   content,
		NotedAt:   notedAt,
	}
	if err := s.sessions.AddNote(ctx, note); err != nil {
		return apperrors.ErrInternal(err)
	}
	return nil
}

// End closes the capture phase and resumes pipeline work. The caller is
// expected to start WaitAndFinalize to drive the session to completion.
func (s *Service) End(ctx context.Context, sessionID string) (*entities.RecordingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}
	if session.Status != entities.SessionStatusRecording {
		return nil, apperrors.ErrSessionInvalidState(sessionID, string(session.Status))
	}

	session.MarkProcessing()
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	if err := s.gate.RecordingStopped(ctx); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("🛑 Session capture ended, pipeline draining",
		zap.String("session_id", sessionID))
	return session, nil
}

// Status reports clip progress and queue depths for a session
type Status struct {
	Session      *entities.RecordingSession    `json:"session"`
	ClipCounts   map[entities.ClipStatus]int64 `json:"clip_counts"`
	Queues       map[string]queue.Counts       `json:"queues"`
	ErroredClips []string                      `json:"errored_clips,omitempty"`
	Notes        []entities.SessionNote        `json:"notes,omitempty"`
}

// Status gathers the current processing state of a session
func (s *Service) Status(ctx context.Context, sessionID string) (*Status, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}

	counts, err := s.clips.CountBySessionGrouped(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	queueCounts := make(map[string]queue.Counts, len(s.queues))
	for _, q := range s.queues {
		c, err := q.GetJobCounts(ctx)
		if err != nil {
			return nil, apperrors.ErrInternal(err)
		}
		queueCounts[q.Name()] = c
	}

	var errored []string
	if counts[entities.ClipStatusError] > 0 {
		failed, err := s.clips.ListBySessionAndStatus(ctx, sessionID, []entities.ClipStatus{entities.ClipStatusError})
		if err != nil {
			return nil, apperrors.ErrInternal(err)
		}
		for _, clip := range failed {
			errored = append(errored, clip.Filename)
		}
	}

	notes, err := s.sessions.ListNotes(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	return &Status{
		Session:      session,
		ClipCounts:   counts,
		Queues:       queueCounts,
		ErroredClips: errored,
		Notes:        notes,
	}, nil
}

// ResetResult summarizes what a reset removed
type ResetResult struct {
	ClipsDeleted int64 `json:"clips_deleted"`
	JobsRemoved  int64 `json:"jobs_removed"`
}

// Reset wipes a session's clip rows, notes and queued jobs so a broken run
// can start over. Jobs currently being processed are left to finish; their
// handlers find the clip rows gone and exit as no-ops.
func (s *Service) Reset(ctx context.Context, sessionID string) (*ResetResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}

	var removed int64
	for _, q := range s.queues {
		n, err := q.RemoveSessionJobs(ctx, sessionID)
		if err != nil {
			return nil, apperrors.ErrInternal(err)
		}
		removed += n
	}

	deleted, err := s.clips.DeleteBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if err := s.sessions.DeleteNotes(ctx, sessionID); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Warn("♻️ Session reset",
		zap.String("session_id", sessionID),
		zap.Int64("clips_deleted", deleted),
		zap.Int64("jobs_removed", removed),
	)
	return &ResetResult{ClipsDeleted: deleted, JobsRemoved: removed}, nil
}

// Get returns a session by id
func (s *Service) Get(ctx context.Context, sessionID string) (*entities.RecordingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}
	return session, nil
}

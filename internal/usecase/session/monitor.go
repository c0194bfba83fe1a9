package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/domain/entities"
)

// Clip statuses that still have pipeline work ahead of them
var activeClipStatuses = []entities.ClipStatus{
	entities.ClipStatusPending,
	entities.ClipStatusProcessing,
	entities.ClipStatusTranscribed,
}

// WaitAndFinalize polls until every clip of the session reaches a terminal
// state and its queues drain, then unloads the remote engine and builds the
// master track. Runs in its own goroutine after End; a restart loses only
// the monitor, and the session can be finalized again by calling Finalize.
func (s *Service) WaitAndFinalize(ctx context.Context, sessionID string) error {
	log := s.logger.With(zap.String("session_id", sessionID))
	log.Info("⏳ Waiting for session pipeline to drain")

	deadline := time.Now().Add(s.cfg.CompletionMaxWait)
	ticker := time.NewTicker(s.cfg.CompletionPollInterval)
	defer ticker.Stop()

	for {
		drained, err := s.isDrained(ctx, sessionID)
		if err != nil {
			log.Warn("Completion check failed", zap.Error(err))
		} else if drained {
			log.Info("Session pipeline drained")
			return s.Finalize(ctx, sessionID)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("session %s did not drain within %s", sessionID, s.cfg.CompletionMaxWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// isDrained reports whether no clip work remains for the session
func (s *Service) isDrained(ctx context.Context, sessionID string) (bool, error) {
	pending, err := s.clips.ListBySessionAndStatus(ctx, sessionID, activeClipStatuses)
	if err != nil {
		return false, err
	}
	if len(pending) > 0 {
		return false, nil
	}

	for _, q := range s.queues {
		n, err := q.CountSessionJobs(ctx, sessionID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Finalize releases engine resources, mixes the master track and marks the
// session complete. Idempotent: a completed session returns immediately.
func (s *Service) Finalize(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.ErrInternal(err)
	}
	if session == nil {
		return apperrors.ErrSessionNotFound(sessionID)
	}
	if session.Status == entities.SessionStatusComplete {
		return nil
	}

	log := s.logger.With(zap.String("session_id", sessionID))

	if s.unloader != nil {
		if err := s.unloader.Unload(ctx); err != nil {
			log.Warn("Failed to unload remote engine", zap.Error(err))
		}
	}

	if _, err := s.mixer.MixSession(ctx, sessionID); err != nil {
		return apperrors.ErrMixFailed(err)
	}

	session, err = s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.ErrInternal(err)
	}
	session.MarkComplete()
	if err := s.sessions.Update(ctx, session); err != nil {
		return apperrors.ErrInternal(err)
	}

	log.Info("🏁 Session complete")
	return nil
}

package repositories

import (
	"context"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// SessionRepository is the persistence contract for recording sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.RecordingSession) error
	GetByID(ctx context.Context, id string) (*entities.RecordingSession, error)
	CountByStatus(ctx context.Context, status entities.SessionStatus) (int64, error)
	Update(ctx context.Context, session *entities.RecordingSession) error

	AddNote(ctx context.Context, note *entities.SessionNote) error
	ListNotes(ctx context.Context, sessionID string) ([]entities.SessionNote, error)
	DeleteNotes(ctx context.Context, sessionID string) error
}

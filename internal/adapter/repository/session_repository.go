package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// SessionRepository handles recording session data operations
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new recording session
func (r *SessionRepository) Create(ctx context.Context, session *entities.RecordingSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.RecordingSession, error) {
	var session entities.RecordingSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// CountByStatus counts sessions currently in the given status
func (r *SessionRepository) CountByStatus(ctx context.Context, status entities.SessionStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.RecordingSession{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Update saves session changes
func (r *SessionRepository) Update(ctx context.Context, session *entities.RecordingSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.RecordingSession{}).
		Where("id = ?", session.ID).
		Save(session).Error
}

// AddNote stores a timestamped session note
func (r *SessionRepository) AddNote(ctx context.Context, note *entities.SessionNote) error {
	if note == nil {
		return errors.New("note cannot be nil")
	}
	return r.db.WithContext(ctx).Create(note).Error
}

// ListNotes retrieves session notes in chronological order
func (r *SessionRepository) ListNotes(ctx context.Context, sessionID string) ([]entities.SessionNote, error) {
	var notes []entities.SessionNote
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("noted_at ASC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// DeleteNotes removes all notes of a session (reset flow)
func (r *SessionRepository) DeleteNotes(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&entities.SessionNote{}).Error
}

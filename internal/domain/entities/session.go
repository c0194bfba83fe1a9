package entities

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle of a recording session
type SessionStatus string

const (
	SessionStatusRecording  SessionStatus = "recording"  // Capture in progress, transcription gated
	SessionStatusProcessing SessionStatus = "processing" // Capture ended, workers draining the queues
	SessionStatusComplete   SessionStatus = "complete"   // Every clip reached a terminal state
)

// RecordingSession is one continuous recording period spanning many clips
type RecordingSession struct {
	ID           string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Campaign     string        `json:"campaign" gorm:"type:varchar(255)"`
	Status       SessionStatus `json:"status" gorm:"type:varchar(20);not null;index;default:'recording'"`
	StartedAt    time.Time     `json:"started_at" gorm:"not null"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	MasterObject *string       `json:"master_object,omitempty" gorm:"type:varchar(512)"` // storage key of the mixed master

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// SessionNote is a timestamped operator note attached to a session
type SessionNote struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);not null;index"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(64);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	NotedAt   int64     `json:"noted_at" gorm:"not null"` // epoch ms, same clock as clip captured_at
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// NewRecordingSession creates a session in recording state
func NewRecordingSession(campaign string) *RecordingSession {
	return &RecordingSession{
		ID:        uuid.NewString(),
		Campaign:  campaign,
		Status:    SessionStatusRecording,
		StartedAt: time.Now(),
	}
}

// MarkProcessing transitions the session out of capture
func (s *RecordingSession) MarkProcessing() {
	now := time.Now()
	s.Status = SessionStatusProcessing
	s.EndedAt = &now
}

// MarkComplete records the end of pipeline work
func (s *RecordingSession) MarkComplete() {
	s.Status = SessionStatusComplete
}

// TableName specifies the table name for GORM
func (RecordingSession) TableName() string {
	return "recording_sessions"
}

// TableName specifies the table name for GORM
func (SessionNote) TableName() string {
	return "session_notes"
}

package session

import "github.com/chronicae/chronicler/internal/domain/entities"

// SessionResponse wraps a recording session for API responses
type SessionResponse struct {
	Session *entities.RecordingSession `json:"session"`
}

// MasterResponse points a client at the finished master track
type MasterResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

package session

// ContextPayload is the narrative context attached to a session
type ContextPayload struct {
	Campaign      string            `json:"campaign"`
	LocationMacro string            `json:"location_macro"`
	LocationMicro string            `json:"location_micro"`
	Speakers      map[string]string `json:"speakers"`
}

// CreateRequest opens a new recording session
type CreateRequest struct {
	Campaign string          `json:"campaign" validate:"required"`
	Context  *ContextPayload `json:"context,omitempty"`
}

// ContextRequest replaces a session's narrative context mid-session
type ContextRequest struct {
	ContextPayload
}

// NoteRequest attaches a timestamped note to a session
type NoteRequest struct {
	AuthorID string `json:"author_id" validate:"required"`
	Content  string `json:"content" validate:"required"`
	NotedAt  int64  `json:"noted_at,omitempty"` // epoch ms, defaults to now
}

package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ClipStatus represents the processing state of a captured audio clip.
// Statuses only move forward: PENDING → PROCESSING → TRANSCRIBED → PROCESSED,
// with ERROR and SKIPPED as terminal side states. Operator resets are the only
// backward transitions.
type ClipStatus string

const (
	ClipStatusPending     ClipStatus = "PENDING"     // Row created, waiting for a transcription worker
	ClipStatusProcessing  ClipStatus = "PROCESSING"  // A transcription worker owns the clip
	ClipStatusTranscribed ClipStatus = "TRANSCRIBED" // Transcript stored, waiting for AI correction
	ClipStatusProcessed   ClipStatus = "PROCESSED"   // Final. Immutable except for mixer reads
	ClipStatusError       ClipStatus = "ERROR"       // Failed after all retries
	ClipStatusSkipped     ClipStatus = "SKIPPED"     // Capture noise: too small or nothing but hallucinations
)

// Clip represents one captured per-speaker audio fragment within a session.
// Filename is globally unique and is the idempotency key for all queue jobs.
type Clip struct {
	ID         uint       `json:"-" gorm:"primaryKey"`
	Filename   string     `json:"filename" gorm:"type:varchar(255);not null;uniqueIndex"`
	SessionID  string     `json:"session_id" gorm:"type:varchar(64);not null;index"`
	SpeakerID  string     `json:"speaker_id" gorm:"type:varchar(64);not null"`
	CapturedAt int64      `json:"captured_at" gorm:"not null"` // epoch ms, alignment anchor for the mixer
	Status     ClipStatus `json:"status" gorm:"type:varchar(20);not null;index;default:'PENDING'"`

	// SegmentText holds pause-grouped sentences; RawSegmentText keeps the
	// unfiltered word-level output for audit.
	SegmentText    datatypes.JSON `json:"segment_text,omitempty" gorm:"type:jsonb"`
	RawSegmentText datatypes.JSON `json:"raw_segment_text,omitempty" gorm:"type:jsonb"`

	ErrorMessage *string `json:"error_message,omitempty" gorm:"type:text"`

	// Snapshots frozen at finalization time so later renames or travel do not
	// retroactively rewrite old transcripts.
	LocationMacro *string `json:"location_macro,omitempty" gorm:"type:varchar(255)"`
	LocationMicro *string `json:"location_micro,omitempty" gorm:"type:varchar(255)"`
	SpeakerName   *string `json:"speaker_name,omitempty" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Segment is one timed piece of transcript text. The transcription stage
// produces word-level segments; the grouping step merges them into sentences.
// Start and End are seconds relative to the clip.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewClip creates a PENDING clip row for a freshly captured fragment
func NewClip(filename, sessionID, speakerID string, capturedAt int64) *Clip {
	return &Clip{
		Filename:   filename,
		SessionID:  sessionID,
		SpeakerID:  speakerID,
		CapturedAt: capturedAt,
		Status:     ClipStatusPending,
	}
}

// IsDone reports whether the clip reached a terminal state
func (c *Clip) IsDone() bool {
	return c.Status == ClipStatusProcessed || c.Status == ClipStatusSkipped ||
		c.Status == ClipStatusError
}

// Segments decodes the sentence-level transcript. Returns an empty slice when
// no transcript is stored yet.
func (c *Clip) Segments() ([]Segment, error) {
	if len(c.SegmentText) == 0 {
		return nil, nil
	}
	var segs []Segment
	if err := json.Unmarshal(c.SegmentText, &segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// TableName specifies the table name for GORM
func (Clip) TableName() string {
	return "clips"
}

package session

import (
	"context"
	"sort"

	apperrors "github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/domain/entities"
)

// TranscriptLine is one spoken sentence placed on the session timeline.
// Timestamp is epoch milliseconds of when the sentence started.
type TranscriptLine struct {
	Timestamp     int64  `json:"timestamp"`
	Speaker       string `json:"speaker"`
	Text          string `json:"text"`
	LocationMacro string `json:"location_macro,omitempty"`
	LocationMicro string `json:"location_micro,omitempty"`
}

// Transcript assembles the cleaned, time-ordered transcript of a session
// from its PROCESSED clips. Sentences from overlapping clips interleave by
// their absolute start times.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]TranscriptLine, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound(sessionID)
	}

	clips, err := s.clips.ListBySessionAndStatus(ctx, sessionID,
		[]entities.ClipStatus{entities.ClipStatusProcessed})
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	lines := make([]TranscriptLine, 0, len(clips))
	for _, clip := range clips {
		segments, err := clip.Segments()
		if err != nil {
			return nil, apperrors.ErrInternal(err)
		}

		speaker := clip.SpeakerID
		if clip.SpeakerName != nil && *clip.SpeakerName != "" {
			speaker = *clip.SpeakerName
		}

		for _, seg := range segments {
			line := TranscriptLine{
				Timestamp: clip.CapturedAt + int64(seg.Start*1000),
				Speaker:   speaker,
				Text:      seg.Text,
			}
			if clip.LocationMacro != nil {
				line.LocationMacro = *clip.LocationMacro
			}
			if clip.LocationMicro != nil {
				line.LocationMicro = *clip.LocationMicro
			}
			lines = append(lines, line)
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Timestamp < lines[j].Timestamp
	})
	return lines, nil
}

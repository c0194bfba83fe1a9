package entities

import (
	"fmt"
	"sort"
	"strings"
)

// SessionContext carries the narrative state frozen into clips at
// finalization time: who each speaker is playing and where the party is.
// It travels explicitly with the session instead of living in a global
// registry, so concurrent sessions cannot bleed into each other.
type SessionContext struct {
	Campaign      string            `json:"campaign"`
	LocationMacro string            `json:"location_macro"`
	LocationMicro string            `json:"location_micro"`
	Speakers      map[string]string `json:"speakers"` // speaker id -> character name
}

// SpeakerName resolves a speaker id to its character name, falling back to
// the raw id for speakers without a registered character
func (c *SessionContext) SpeakerName(speakerID string) string {
	if c == nil {
		return speakerID
	}
	if name, ok := c.Speakers[speakerID]; ok && name != "" {
		return name
	}
	return speakerID
}

// Scene renders the context as a prompt fragment for the correction model
func (c *SessionContext) Scene() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if c.Campaign != "" {
		parts = append(parts, fmt.Sprintf("campaign %q", c.Campaign))
	}
	if c.LocationMacro != "" {
		loc := c.LocationMacro
		if c.LocationMicro != "" {
			loc += ", " + c.LocationMicro
		}
		parts = append(parts, "location: "+loc)
	}
	if len(c.Speakers) > 0 {
		names := make([]string, 0, len(c.Speakers))
		for _, n := range c.Speakers {
			names = append(names, n)
		}
		sort.Strings(names)
		parts = append(parts, "characters: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "; ")
}

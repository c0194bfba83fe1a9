package transcribe

import (
	"strings"
	"unicode"
)

// Phrases whisper invents on silence or music. Matched case-insensitively as
// substrings; any hit discards the whole segment.
var hallucinationPhrases = []string{
	"sottotitoli creati dalla comunità", "sottotitoli a cura di", "sottotitoli e revisione",
	"traduzione a cura di", "sottotitolato da", "sottotitoli di",
	"amara.org", "qtss", "luca gardella",
	"subtitle by", "subtitles by", "translated by",
	"thanks for watching", "thank you for watching", "please subscribe",
	"iscrivetevi al canale", "copyright", "all rights reserved",
	"mbc", "al jazeera",
	"musica", "applausi", "silenzio", "sussurro", "sigla",
	"music", "applause", "silence",
}

// IsHallucination reports whether a segment text matches a known whisper
// hallucination phrase
func IsHallucination(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range hallucinationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsRepetitiveLoop detects decoder loops, where whisper repeats the same few
// words over a stretch of silence. Short texts never qualify.
func IsRepetitiveLoop(text string) bool {
	if len(text) < 20 {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 5 {
		return false
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[normalizeWord(w)] = struct{}{}
	}
	return float64(len(unique)) < float64(len(words))*0.4
}

// FilterWords drops empty and hallucinated words, keeping timing order
func FilterWords(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || IsHallucination(text) {
			continue
		}
		w.Text = text
		out = append(out, w)
	}
	return out
}

func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package transcribe

import "strings"

// A silence this long between consecutive words starts a new sentence
const pauseThreshold = 2.5

// Sentence is a pause-delimited group of words with the timing envelope of
// its first and last word
type Sentence struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// GroupWordsIntoSentences folds timed words into sentences, splitting where
// the speaker paused longer than the threshold. Words must already be sorted
// by start time, which whisper guarantees.
func GroupWordsIntoSentences(words []Word) []Sentence {
	if len(words) == 0 {
		return nil
	}

	sentences := make([]Sentence, 0, 4)
	current := Sentence{
		Start: words[0].Start,
		End:   words[0].End,
		Text:  strings.TrimSpace(words[0].Text),
	}

	for i := 1; i < len(words); i++ {
		pause := words[i].Start - words[i-1].End
		if pause > pauseThreshold {
			sentences = append(sentences, current)
			current = Sentence{
				Start: words[i].Start,
				End:   words[i].End,
				Text:  strings.TrimSpace(words[i].Text),
			}
			continue
		}
		current.Text += " " + strings.TrimSpace(words[i].Text)
		current.End = words[i].End
	}

	if current.Text != "" {
		sentences = append(sentences, current)
	}
	return sentences
}

// CleanSentences drops sentences that survive word filtering but still read
// as hallucinations once assembled, loops included
func CleanSentences(sentences []Sentence) []Sentence {
	out := make([]Sentence, 0, len(sentences))
	for _, s := range sentences {
		text := strings.TrimSpace(s.Text)
		if text == "" || IsHallucination(text) || IsRepetitiveLoop(text) {
			continue
		}
		s.Text = text
		out = append(out, s)
	}
	return out
}

package transcribe

import "testing"

func TestIsHallucination(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Sottotitoli creati dalla comunità Amara.org", true},
		{"Thanks for watching!", true},
		{"[Musica]", true},
		{"Lancio un dado da venti", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsHallucination(c.text); got != c.want {
			t.Errorf("IsHallucination(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestIsRepetitiveLoop(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"loop", "grazie grazie grazie grazie grazie grazie grazie", true},
		{"short text never loops", "si si si", false},
		{"few words never loop", "grazie grazie grazie.", false},
		{"normal speech", "il mago lancia una palla di fuoco sul ponte", false},
	}
	for _, c := range cases {
		if got := IsRepetitiveLoop(c.text); got != c.want {
			t.Errorf("%s: IsRepetitiveLoop(%q) = %v, want %v", c.name, c.text, got, c.want)
		}
	}
}

func TestFilterWords(t *testing.T) {
	words := []Word{
		{Start: 0, End: 1, Text: " attacco "},
		{Start: 1, End: 2, Text: ""},
		{Start: 2, End: 3, Text: "[Musica]"},
		{Start: 3, End: 4, Text: "riuscito"},
	}
	out := FilterWords(words)
	if len(out) != 2 {
		t.Fatalf("expected 2 words, got %d", len(out))
	}
	if out[0].Text != "attacco" || out[1].Text != "riuscito" {
		t.Errorf("unexpected filtered words %+v", out)
	}
}

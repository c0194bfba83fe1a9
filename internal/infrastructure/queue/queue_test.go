package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRetryDelay_ExponentialSchedule(t *testing.T) {
	q := New(nil, TranscribeQueue, 3, 2*time.Second)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{0, 2 * time.Second}, // clamped
	}
	for _, c := range cases {
		if got := q.RetryDelay(c.attempt); got != c.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestJobBelongsTo(t *testing.T) {
	job := Job{
		ID:        "transcribe-clip.flac-1700000000000",
		Queue:     TranscribeQueue,
		SessionID: "sess-1",
		Filename:  "clip.flac",
	}
	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if !jobBelongsTo(string(raw), "sess-1") {
		t.Error("expected job to belong to sess-1")
	}
	if jobBelongsTo(string(raw), "sess-2") {
		t.Error("expected job not to belong to sess-2")
	}
	if jobBelongsTo("{not json", "sess-1") {
		t.Error("undecodable payload must not match any session")
	}
}

func TestQueueKeys_AreNamespaced(t *testing.T) {
	q := New(nil, CorrectQueue, 3, time.Second)

	if q.waitingKey() != "queue:correct:waiting" {
		t.Errorf("unexpected waiting key %s", q.waitingKey())
	}
	if q.delayedKey() != "queue:correct:delayed" {
		t.Errorf("unexpected delayed key %s", q.delayedKey())
	}
	if q.activeKey() != "queue:correct:active" {
		t.Errorf("unexpected active key %s", q.activeKey())
	}
}

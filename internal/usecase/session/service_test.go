package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/domain/entities"
	"github.com/chronicae/chronicler/internal/infrastructure/queue"
	"github.com/chronicae/chronicler/pkg/config"
)

type fakeSessionRepo struct {
	sessions map[string]*entities.RecordingSession
	notes    map[string][]entities.SessionNote
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: map[string]*entities.RecordingSession{},
		notes:    map[string][]entities.SessionNote{},
	}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *entities.RecordingSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entities.RecordingSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) CountByStatus(ctx context.Context, status entities.SessionStatus) (int64, error) {
	var n int64
	for _, s := range r.sessions {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, s *entities.RecordingSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) AddNote(ctx context.Context, n *entities.SessionNote) error {
	r.notes[n.SessionID] = append(r.notes[n.SessionID], *n)
	return nil
}

func (r *fakeSessionRepo) ListNotes(ctx context.Context, sessionID string) ([]entities.SessionNote, error) {
	return r.notes[sessionID], nil
}

func (r *fakeSessionRepo) DeleteNotes(ctx context.Context, sessionID string) error {
	delete(r.notes, sessionID)
	return nil
}

type fakeClipRepo struct {
	clips map[string]*entities.Clip
}

func newFakeClipRepo() *fakeClipRepo {
	return &fakeClipRepo{clips: map[string]*entities.Clip{}}
}

func (r *fakeClipRepo) Create(ctx context.Context, c *entities.Clip) error {
	r.clips[c.Filename] = c
	return nil
}

func (r *fakeClipRepo) GetByFilename(ctx context.Context, filename string) (*entities.Clip, error) {
	c, ok := r.clips[filename]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (r *fakeClipRepo) UpdateStatusGuarded(ctx context.Context, filename string, expected []entities.ClipStatus, target entities.ClipStatus, fields map[string]interface{}) (bool, error) {
	return false, nil
}

func (r *fakeClipRepo) MarkError(ctx context.Context, filename, message string) error   { return nil }
func (r *fakeClipRepo) MarkSkipped(ctx context.Context, filename, reason string) error { return nil }

func (r *fakeClipRepo) ListBySession(ctx context.Context, sessionID string) ([]entities.Clip, error) {
	var out []entities.Clip
	for _, c := range r.clips {
		if c.SessionID == sessionID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeClipRepo) ListBySessionAndStatus(ctx context.Context, sessionID string, statuses []entities.ClipStatus) ([]entities.Clip, error) {
	var out []entities.Clip
	for _, c := range r.clips {
		if c.SessionID != sessionID {
			continue
		}
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, *c)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeClipRepo) CountBySessionGrouped(ctx context.Context, sessionID string) (map[entities.ClipStatus]int64, error) {
	counts := map[entities.ClipStatus]int64{}
	for _, c := range r.clips {
		if c.SessionID == sessionID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

func (r *fakeClipRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	for f, c := range r.clips {
		if c.SessionID == sessionID {
			delete(r.clips, f)
			n++
		}
	}
	return n, nil
}

type fakeContextStore struct {
	saved map[string]*entities.SessionContext
}

func (s *fakeContextStore) Save(ctx context.Context, sessionID string, sc *entities.SessionContext) error {
	if s.saved == nil {
		s.saved = map[string]*entities.SessionContext{}
	}
	s.saved[sessionID] = sc
	return nil
}

func (s *fakeContextStore) Resolve(ctx context.Context, sessionID string) (*entities.SessionContext, error) {
	return s.saved[sessionID], nil
}

func (s *fakeContextStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.saved, sessionID)
	return nil
}

type fakeGate struct{ started, stopped int }

func (g *fakeGate) RecordingStarted(ctx context.Context) error { g.started++; return nil }
func (g *fakeGate) RecordingStopped(ctx context.Context) error { g.stopped++; return nil }

type fakeEnqueuer struct{ jobs []*queue.Job }

func (q *fakeEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeJobQueue struct {
	name        string
	sessionJobs int64
	removed     int64
}

func (q *fakeJobQueue) Name() string { return q.name }

func (q *fakeJobQueue) GetJobCounts(ctx context.Context) (queue.Counts, error) {
	return queue.Counts{Waiting: q.sessionJobs}, nil
}

func (q *fakeJobQueue) CountSessionJobs(ctx context.Context, sessionID string) (int64, error) {
	return q.sessionJobs, nil
}

func (q *fakeJobQueue) RemoveSessionJobs(ctx context.Context, sessionID string) (int64, error) {
	q.removed = q.sessionJobs
	q.sessionJobs = 0
	return q.removed, nil
}

type fakeMixer struct {
	calls int
	err   error
}

func (m *fakeMixer) MixSession(ctx context.Context, sessionID string) (string, error) {
	m.calls++
	return "mixed/" + sessionID + "/master.mp3", m.err
}

type fakeUnloader struct{ calls int }

func (u *fakeUnloader) Unload(ctx context.Context) error { u.calls++; return nil }

type fixture struct {
	svc      *Service
	sessions *fakeSessionRepo
	clips    *fakeClipRepo
	contexts *fakeContextStore
	gate     *fakeGate
	enq      *fakeEnqueuer
	q        *fakeJobQueue
	mixer    *fakeMixer
	unloader *fakeUnloader
}

func newFixture() *fixture {
	f := &fixture{
		sessions: newFakeSessionRepo(),
		clips:    newFakeClipRepo(),
		contexts: &fakeContextStore{},
		gate:     &fakeGate{},
		enq:      &fakeEnqueuer{},
		q:        &fakeJobQueue{name: queue.TranscribeQueue},
		mixer:    &fakeMixer{},
		unloader: &fakeUnloader{},
	}
	f.svc = NewService(f.sessions, f.clips, f.contexts, f.gate, f.enq,
		[]JobQueue{f.q}, f.mixer, f.unloader,
		&config.PipelineConfig{
			CompletionPollInterval: 5 * time.Millisecond,
			CompletionMaxWait:      time.Second,
		}, zap.NewNop())
	return f
}

func TestStart_SavesContextAndPausesPipeline(t *testing.T) {
	f := newFixture()

	sess, err := f.svc.Start(context.Background(), "Draghi di Sale", &entities.SessionContext{
		Campaign: "Draghi di Sale",
		Speakers: map[string]string{"spk-1": "Alzur"},
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if sess.Status != entities.SessionStatusRecording {
		t.Errorf("expected recording status, got %s", sess.Status)
	}
	if f.gate.started != 1 {
		t.Errorf("gate must be started once, got %d", f.gate.started)
	}
	if f.contexts.saved[sess.ID] == nil {
		t.Error("session context not saved")
	}
}

func TestIngestClip_QueuesTranscription(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)

	clip, err := f.svc.IngestClip(context.Background(), sess.ID, "spk-1", "a.flac", 1000)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if clip.Status != entities.ClipStatusPending {
		t.Errorf("expected PENDING, got %s", clip.Status)
	}
	if len(f.enq.jobs) != 1 || f.enq.jobs[0].Filename != "a.flac" {
		t.Errorf("expected 1 transcribe job for a.flac, got %+v", f.enq.jobs)
	}
}

func TestIngestClip_DuplicateFilenameRejected(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)
	if _, err := f.svc.IngestClip(context.Background(), sess.ID, "spk-1", "a.flac", 1000); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.IngestClip(context.Background(), sess.ID, "spk-1", "a.flac", 2000)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_CLIP_ALREADY_EXISTS {
		t.Fatalf("expected CLIP_ALREADY_EXISTS, got %v", err)
	}
	if appErr.Details["session_id"] != sess.ID {
		t.Errorf("conflict must name the owning session, got details %v", appErr.Details)
	}
	if len(f.enq.jobs) != 1 {
		t.Errorf("duplicate must not enqueue a second job, got %d", len(f.enq.jobs))
	}
}

func TestIngestClip_UnknownSession(t *testing.T) {
	f := newFixture()
	_, err := f.svc.IngestClip(context.Background(), "nope", "spk-1", "a.flac", 1000)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_SESSION_NOT_FOUND {
		t.Fatalf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestEnd_OnlyFromRecording(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)

	ended, err := f.svc.End(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.Status != entities.SessionStatusProcessing {
		t.Errorf("expected processing, got %s", ended.Status)
	}
	if ended.EndedAt == nil {
		t.Error("ended_at not set")
	}
	if f.gate.stopped != 1 {
		t.Errorf("gate must be stopped once, got %d", f.gate.stopped)
	}

	if _, err := f.svc.End(context.Background(), sess.ID); err == nil {
		t.Fatal("ending a non-recording session must fail")
	}
}

func TestReset_RemovesClipsNotesAndQueuedJobs(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)
	f.svc.IngestClip(context.Background(), sess.ID, "spk-1", "a.flac", 1000)
	f.svc.IngestClip(context.Background(), sess.ID, "spk-2", "b.flac", 2000)
	f.svc.AddNote(context.Background(), sess.ID, "op", "boss fight begins", 1500)
	f.q.sessionJobs = 2

	res, err := f.svc.Reset(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if res.ClipsDeleted != 2 {
		t.Errorf("expected 2 clips deleted, got %d", res.ClipsDeleted)
	}
	if res.JobsRemoved != 2 {
		t.Errorf("expected 2 jobs removed, got %d", res.JobsRemoved)
	}
	if len(f.clips.clips) != 0 {
		t.Errorf("clips remain after reset: %d", len(f.clips.clips))
	}
	if len(f.sessions.notes[sess.ID]) != 0 {
		t.Error("notes remain after reset")
	}
}

func TestWaitAndFinalize_DrainsThenMixes(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)
	f.svc.End(context.Background(), sess.ID)

	clip := entities.NewClip("done.flac", sess.ID, "spk-1", 1000)
	clip.Status = entities.ClipStatusProcessed
	f.clips.Create(context.Background(), clip)

	if err := f.svc.WaitAndFinalize(context.Background(), sess.ID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if f.mixer.calls != 1 {
		t.Errorf("mixer must run once, got %d", f.mixer.calls)
	}
	if f.unloader.calls != 1 {
		t.Errorf("unloader must run once, got %d", f.unloader.calls)
	}
	if f.sessions.sessions[sess.ID].Status != entities.SessionStatusComplete {
		t.Errorf("expected complete, got %s", f.sessions.sessions[sess.ID].Status)
	}
}

func TestFinalize_CompletedSessionIsNoOp(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)
	f.sessions.sessions[sess.ID].Status = entities.SessionStatusComplete

	if err := f.svc.Finalize(context.Background(), sess.ID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if f.mixer.calls != 0 {
		t.Errorf("mixer must not rerun for a complete session, got %d", f.mixer.calls)
	}
}

func TestTranscript_OrdersAcrossClipsAndUsesSnapshots(t *testing.T) {
	f := newFixture()
	sess, _ := f.svc.Start(context.Background(), "c", nil)

	alzur := "Alzur"
	tavern := "Porto Nebbioso"
	clipA := entities.NewClip("a.flac", sess.ID, "spk-1", 1000)
	clipA.Status = entities.ClipStatusProcessed
	clipA.SpeakerName = &alzur
	clipA.LocationMacro = &tavern
	segA, _ := json.Marshal([]entities.Segment{
		{Start: 0, End: 1, Text: "entro nella taverna"},
		{Start: 5, End: 6, Text: "ordino una birra"},
	})
	clipA.SegmentText = segA

	clipB := entities.NewClip("b.flac", sess.ID, "spk-2", 3000)
	clipB.Status = entities.ClipStatusProcessed
	segB, _ := json.Marshal([]entities.Segment{
		{Start: 0.5, End: 2, Text: "ti seguo dentro"},
	})
	clipB.SegmentText = segB

	f.clips.Create(context.Background(), clipA)
	f.clips.Create(context.Background(), clipB)

	lines, err := f.svc.Transcript(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	// Absolute times: 1000, 3500, 6000
	wantOrder := []string{"entro nella taverna", "ti seguo dentro", "ordino una birra"}
	for i, want := range wantOrder {
		if lines[i].Text != want {
			t.Errorf("line %d = %q, want %q", i, lines[i].Text, want)
		}
	}
	if lines[0].Speaker != "Alzur" {
		t.Errorf("expected snapshot speaker name, got %q", lines[0].Speaker)
	}
	if lines[1].Speaker != "spk-2" {
		t.Errorf("expected speaker id fallback, got %q", lines[1].Speaker)
	}
	if lines[0].LocationMacro != "Porto Nebbioso" {
		t.Errorf("location snapshot missing: %q", lines[0].LocationMacro)
	}
}

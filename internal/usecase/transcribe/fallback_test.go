package transcribe

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/pkg/ai"
)

type fakeRemote struct {
	err   error
	out   *ai.RemoteTranscription
	calls int
}

func (f *fakeRemote) Transcribe(ctx context.Context, fileURL string) (*ai.RemoteTranscription, error) {
	f.calls++
	return f.out, f.err
}

type fakeLocal struct {
	out   *Result
	err   error
	calls int
}

func (f *fakeLocal) Name() string { return "fake-local" }

func (f *fakeLocal) Transcribe(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	return f.out, f.err
}

func TestCascade_RemoteSuccessSkipsLocal(t *testing.T) {
	remote := &fakeRemote{out: &ai.RemoteTranscription{
		Text:  "ciao a tutti quanti",
		Words: []ai.Word{{Start: 0, End: 1, Word: "ciao"}},
	}}
	local := &fakeLocal{}
	eng := NewCascadeEngine(remote, local, zap.NewNop())

	res, err := eng.Transcribe(context.Background(), Request{
		Filename:  "clip.flac",
		SignedURL: "http://storage/clip.flac?sig=x",
	})
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if res.Engine != "whisper-remote" {
		t.Errorf("expected remote engine, got %s", res.Engine)
	}
	if local.calls != 0 {
		t.Errorf("local engine must not run when remote succeeds, ran %d times", local.calls)
	}
	if len(res.Words) != 1 || res.Words[0].Text != "ciao" {
		t.Errorf("remote words not mapped: %+v", res.Words)
	}
}

func TestCascade_RemoteFailureFallsBackToLocalOnce(t *testing.T) {
	remote := &fakeRemote{err: &ai.RemoteError{Kind: ai.RemoteFailureNetwork, Err: context.DeadlineExceeded}}
	local := &fakeLocal{out: &Result{Text: "locale", Engine: "whisper-local"}}
	eng := NewCascadeEngine(remote, local, zap.NewNop())

	res, err := eng.Transcribe(context.Background(), Request{
		Filename:  "clip.flac",
		SignedURL: "http://storage/clip.flac?sig=x",
	})
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if res.Engine != "whisper-local" {
		t.Errorf("expected local result, got %s", res.Engine)
	}
	if remote.calls != 1 {
		t.Errorf("remote must be tried exactly once, got %d", remote.calls)
	}
	if local.calls != 1 {
		t.Errorf("local must run exactly once on fallback, got %d", local.calls)
	}
}

func TestCascade_NoSignedURLGoesStraightToLocal(t *testing.T) {
	remote := &fakeRemote{}
	local := &fakeLocal{out: &Result{Engine: "whisper-local"}}
	eng := NewCascadeEngine(remote, local, zap.NewNop())

	if _, err := eng.Transcribe(context.Background(), Request{Filename: "clip.flac"}); err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if remote.calls != 0 {
		t.Errorf("remote must not be called without a signed URL, got %d", remote.calls)
	}
	if local.calls != 1 {
		t.Errorf("local must run once, got %d", local.calls)
	}
}

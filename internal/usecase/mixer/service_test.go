package mixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/chronicae/chronicler/internal/infrastructure/media"
	"github.com/chronicae/chronicler/pkg/config"
)

// fakeMixer records every batch it is asked to mix and writes an empty file
// where the real runner would write audio.
type fakeMixer struct {
	batches [][]media.MixInput
}

func (f *fakeMixer) MixBatch(ctx context.Context, inputs []media.MixInput, outPath string) error {
	batch := make([]media.MixInput, len(inputs))
	copy(batch, inputs)
	f.batches = append(f.batches, batch)
	return os.WriteFile(outPath, []byte("wav"), 0o644)
}

func (f *fakeMixer) EncodeMaster(ctx context.Context, inPath, outPath, bitrate string) error {
	return os.WriteFile(outPath, []byte("mp3"), 0o644)
}

func foldWithBatchSize(t *testing.T, placements []Placement, paths map[string]string, size int) *fakeMixer {
	t.Helper()
	fm := &fakeMixer{}
	svc := NewService(nil, nil, nil, fm,
		&config.MixerConfig{BatchSize: size}, "", 0, zap.NewNop())

	tempDir := t.TempDir()
	if _, err := svc.foldBatches(context.Background(), placements, paths, tempDir, zap.NewNop()); err != nil {
		t.Fatalf("fold with batch size %d: %v", size, err)
	}
	return fm
}

// clipPlacements returns how the accumulator fold positioned each clip,
// skipping the carried-over accumulator inputs.
func clipPlacements(fm *fakeMixer) map[string]int64 {
	delays := map[string]int64{}
	for i, batch := range fm.batches {
		for j, in := range batch {
			if i > 0 && j == 0 {
				continue
			}
			delays[filepath.Base(in.Path)] = in.DelayMs
		}
	}
	return delays
}

func TestFoldBatches_DelaysInvariantUnderBatchSize(t *testing.T) {
	const n = 23
	placements := make([]Placement, 0, n)
	paths := map[string]string{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("clip_%02d.flac", i)
		placements = append(placements, Placement{Filename: name, DelayMs: int64(i * 750)})
		paths[name] = "/audio/" + name
	}

	small := foldWithBatchSize(t, placements, paths, 2)
	large := foldWithBatchSize(t, placements, paths, 50)

	smallDelays := clipPlacements(small)
	largeDelays := clipPlacements(large)

	if len(smallDelays) != n || len(largeDelays) != n {
		t.Fatalf("expected %d placed clips, got %d and %d", n, len(smallDelays), len(largeDelays))
	}
	for name, want := range largeDelays {
		if got, ok := smallDelays[name]; !ok || got != want {
			t.Errorf("clip %s: delay %d with batch size 2, %d with batch size 50", name, got, want)
		}
	}
}

func TestFoldBatches_AccumulatorCarriesAtZeroDelay(t *testing.T) {
	placements := []Placement{
		{Filename: "a.flac", DelayMs: 0},
		{Filename: "b.flac", DelayMs: 1200},
		{Filename: "c.flac", DelayMs: 2400},
	}
	paths := map[string]string{
		"a.flac": "/audio/a.flac",
		"b.flac": "/audio/b.flac",
		"c.flac": "/audio/c.flac",
	}

	fm := foldWithBatchSize(t, placements, paths, 2)

	if len(fm.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(fm.batches))
	}
	if got := fm.batches[0]; len(got) != 2 {
		t.Fatalf("first batch must hold only clips, got %d inputs", len(got))
	}
	second := fm.batches[1]
	if len(second) != 2 {
		t.Fatalf("second batch must hold accumulator plus one clip, got %d inputs", len(second))
	}
	if filepath.Base(second[0].Path) != "accumulator.wav" || second[0].DelayMs != 0 {
		t.Errorf("accumulator must enter as input zero with no delay, got %+v", second[0])
	}
	if second[1].DelayMs != 2400 {
		t.Errorf("late clip must keep its absolute delay, got %d", second[1].DelayMs)
	}
}

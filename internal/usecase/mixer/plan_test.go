package mixer

import (
	"testing"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

func clipAt(filename string, capturedAt int64) entities.Clip {
	return entities.Clip{Filename: filename, SpeakerID: "spk", CapturedAt: capturedAt}
}

func TestComputeDelays_AnchorsOnEarliestClip(t *testing.T) {
	clips := []entities.Clip{
		clipAt("a.flac", 1000),
		clipAt("b.flac", 1500),
		clipAt("c.flac", 4000),
	}

	placements := ComputeDelays(clips)
	want := []int64{0, 500, 3000}
	for i, p := range placements {
		if p.DelayMs != want[i] {
			t.Errorf("clip %s delay = %d, want %d", p.Filename, p.DelayMs, want[i])
		}
	}
}

func TestComputeDelays_SingleClipStartsAtZero(t *testing.T) {
	placements := ComputeDelays([]entities.Clip{clipAt("only.flac", 987654)})
	if len(placements) != 1 || placements[0].DelayMs != 0 {
		t.Errorf("unexpected placements %+v", placements)
	}
}

func TestComputeDelays_Empty(t *testing.T) {
	if got := ComputeDelays(nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestBatchRanges(t *testing.T) {
	cases := []struct {
		n, size int
		want    [][2]int
	}{
		{25, 10, [][2]int{{0, 10}, {10, 20}, {20, 25}}},
		{10, 10, [][2]int{{0, 10}}},
		{3, 10, [][2]int{{0, 3}}},
		{0, 10, nil},
	}
	for _, c := range cases {
		got := BatchRanges(c.n, c.size)
		if len(got) != len(c.want) {
			t.Errorf("BatchRanges(%d,%d) = %v, want %v", c.n, c.size, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("BatchRanges(%d,%d)[%d] = %v, want %v", c.n, c.size, i, got[i], c.want[i])
			}
		}
	}
}

func TestBatchRanges_CoverEveryIndexOnce(t *testing.T) {
	// The master mix must include every clip exactly once regardless of
	// batch size
	for _, size := range []int{2, 3, 7, 10, 100} {
		seen := map[int]int{}
		for _, r := range BatchRanges(23, size) {
			for i := r[0]; i < r[1]; i++ {
				seen[i]++
			}
		}
		for i := 0; i < 23; i++ {
			if seen[i] != 1 {
				t.Fatalf("size %d: index %d covered %d times", size, i, seen[i])
			}
		}
	}
}

package mixer

import (
	"github.com/chronicae/chronicler/internal/domain/entities"
)

// Placement positions one clip on the session timeline. DelayMs is the
// clip's offset from the earliest capture in the session, so the first clip
// always starts at zero.
type Placement struct {
	Filename  string
	SpeakerID string
	DelayMs   int64
}

// ComputeDelays turns capture timestamps into mix delays. Clips must be
// sorted by captured_at ascending; output preserves that order. A clock
// captured before the session minimum can only happen through data
// corruption and clamps to zero.
func ComputeDelays(clips []entities.Clip) []Placement {
	if len(clips) == 0 {
		return nil
	}

	min := clips[0].CapturedAt
	for _, c := range clips {
		if c.CapturedAt < min {
			min = c.CapturedAt
		}
	}

	placements := make([]Placement, 0, len(clips))
	for _, c := range clips {
		delay := c.CapturedAt - min
		if delay < 0 {
			delay = 0
		}
		placements = append(placements, Placement{
			Filename:  c.Filename,
			SpeakerID: c.SpeakerID,
			DelayMs:   delay,
		})
	}
	return placements
}

// BatchRanges splits n items into [start, end) index ranges of at most size
// items each. ffmpeg input lists cannot grow unbounded, so the mix folds one
// batch at a time into an accumulator.
func BatchRanges(n, size int) [][2]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	ranges := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const recordingCountKey = "recording:active_count"

// RecordingGate pauses heavy transcription work while any session is live so
// the capture host keeps its CPU for recording. The count survives restarts
// in Redis; ResetOnBoot rebuilds it from the session store's view so a
// restart mid-capture keeps the queues gated.
type RecordingGate struct {
	rdb    *redis.Client
	queues []*Queue
	logger *zap.Logger
}

// NewRecordingGate creates a gate over the given queues
func NewRecordingGate(rdb *redis.Client, logger *zap.Logger, queues ...*Queue) *RecordingGate {
	return &RecordingGate{rdb: rdb, queues: queues, logger: logger}
}

// RecordingStarted increments the live-recording count and pauses the gated
// queues on the zero-to-one transition
func (g *RecordingGate) RecordingStarted(ctx context.Context) error {
	count, err := g.rdb.Incr(ctx, recordingCountKey).Result()
	if err != nil {
		return fmt.Errorf("failed to increment recording count: %w", err)
	}
	if count == 1 {
		g.logger.Info("⏸️ First live recording, pausing processing queues")
		return g.pauseAll(ctx)
	}
	g.logger.Info("Recording started", zap.Int64("live_recordings", count))
	return nil
}

// RecordingStopped decrements the live-recording count and resumes the gated
// queues when no recordings remain. A negative count is clamped to zero.
func (g *RecordingGate) RecordingStopped(ctx context.Context) error {
	count, err := g.rdb.Decr(ctx, recordingCountKey).Result()
	if err != nil {
		return fmt.Errorf("failed to decrement recording count: %w", err)
	}
	if count < 0 {
		if err := g.rdb.Set(ctx, recordingCountKey, 0, 0).Err(); err != nil {
			return fmt.Errorf("failed to clamp recording count: %w", err)
		}
		count = 0
	}
	if count == 0 {
		g.logger.Info("▶️ No live recordings remain, resuming processing queues")
		return g.resumeAll(ctx)
	}
	g.logger.Info("Recording stopped", zap.Int64("live_recordings", count))
	return nil
}

// ResetOnBoot sets the recording count to the number of sessions the store
// still considers live. Sessions are durable rows, so a restart mid-capture
// must keep the queues paused; a crash that orphaned the counter with no
// live session resumes them.
func (g *RecordingGate) ResetOnBoot(ctx context.Context, liveSessions int64) error {
	if liveSessions < 0 {
		liveSessions = 0
	}
	if err := g.rdb.Set(ctx, recordingCountKey, liveSessions, 0).Err(); err != nil {
		return fmt.Errorf("failed to reset recording count: %w", err)
	}
	if liveSessions > 0 {
		g.logger.Info("⏸️ Recordings still live after restart, keeping queues paused",
			zap.Int64("live_recordings", liveSessions))
		return g.pauseAll(ctx)
	}
	return g.resumeAll(ctx)
}

func (g *RecordingGate) pauseAll(ctx context.Context) error {
	for _, q := range g.queues {
		if err := q.Pause(ctx); err != nil {
			return fmt.Errorf("failed to pause queue %s: %w", q.Name(), err)
		}
	}
	return nil
}

func (g *RecordingGate) resumeAll(ctx context.Context) error {
	for _, q := range g.queues {
		if err := q.Resume(ctx); err != nil {
			return fmt.Errorf("failed to resume queue %s: %w", q.Name(), err)
		}
	}
	return nil
}

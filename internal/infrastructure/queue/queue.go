package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names used by the pipeline
const (
	TranscribeQueue = "transcribe"
	CorrectQueue    = "correct"
)

// Job is one unit of clip work. Its ID is the clip filename plus a
// queue-scoped timestamp suffix; idempotency is enforced by the clip row's
// status guard, not by job identity, so replaying a job is always safe.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	SessionID   string          `json:"session_id"`
	Filename    string          `json:"filename"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  int64           `json:"enqueued_at"`
}

// Counts mirrors the queue introspection contract used by session gating and
// operator status commands
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is a durable Redis-backed job queue. Waiting jobs sit in a list,
// retries wait in a delayed sorted set scored by their ready time, and jobs
// being processed are parked in an active list so counts stay accurate.
type Queue struct {
	rdb         *redis.Client
	name        string
	maxAttempts int
	backoffBase time.Duration
}

// New creates a queue handle. maxAttempts and backoffBase govern the retry
// schedule applied when a handler returns an error.
func New(rdb *redis.Client, name string, maxAttempts int, backoffBase time.Duration) *Queue {
	return &Queue{
		rdb:         rdb,
		name:        name,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Name returns the queue name
func (q *Queue) Name() string { return q.name }

func (q *Queue) waitingKey() string   { return fmt.Sprintf("queue:%s:waiting", q.name) }
func (q *Queue) delayedKey() string   { return fmt.Sprintf("queue:%s:delayed", q.name) }
func (q *Queue) activeKey() string    { return fmt.Sprintf("queue:%s:active", q.name) }
func (q *Queue) pausedKey() string    { return fmt.Sprintf("queue:%s:paused", q.name) }
func (q *Queue) completedKey() string { return fmt.Sprintf("queue:%s:completed", q.name) }
func (q *Queue) failedKey() string    { return fmt.Sprintf("queue:%s:failed", q.name) }

// Enqueue appends a job to the waiting list. Fills in queue bookkeeping
// fields when the caller left them zero.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	now := time.Now().UnixMilli()
	job.Queue = q.name
	if job.ID == "" {
		job.ID = fmt.Sprintf("%s-%s-%d", q.name, job.Filename, now)
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = q.maxAttempts
	}
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = now
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	if err := q.rdb.LPush(ctx, q.waitingKey(), raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// enqueueDelayed schedules a job to become waiting after the given delay
func (q *Queue) enqueueDelayed(ctx context.Context, job *Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: readyAt, Member: raw}).Err(); err != nil {
		return fmt.Errorf("failed to delay job %s: %w", job.ID, err)
	}
	return nil
}

// promoteDelayed moves every due delayed job back onto the waiting list
func (q *Queue) promoteDelayed(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	due, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, raw := range due {
		// Remove before pushing so two workers never promote the same job
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), raw).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.waitingKey(), raw).Err(); err != nil {
			return err
		}
	}
	return nil
}

// RequeueStalled moves every job parked in the active list back to waiting.
// Entries still there when a worker boots belong to a worker that died
// mid-job; replaying them is safe because handlers are guarded by the clip
// row's status.
func (q *Queue) RequeueStalled(ctx context.Context) (int64, error) {
	var moved int64
	for {
		_, err := q.rdb.LMove(ctx, q.activeKey(), q.waitingKey(), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue stalled job: %w", err)
		}
		moved++
	}
}

// Pause gates the queue: jobs keep accumulating but workers stop pulling
func (q *Queue) Pause(ctx context.Context) error {
	return q.rdb.Set(ctx, q.pausedKey(), "1", 0).Err()
}

// Resume lifts the pause gate
func (q *Queue) Resume(ctx context.Context) error {
	return q.rdb.Del(ctx, q.pausedKey()).Err()
}

// IsPaused reports whether the pause gate is set
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.rdb.Exists(ctx, q.pausedKey()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetJobCounts returns waiting/active/completed/failed counts. Delayed jobs
// count as waiting: they are queued work that has not started.
func (q *Queue) GetJobCounts(ctx context.Context) (Counts, error) {
	var counts Counts

	waiting, err := q.rdb.LLen(ctx, q.waitingKey()).Result()
	if err != nil {
		return counts, fmt.Errorf("failed to count waiting jobs: %w", err)
	}
	delayed, err := q.rdb.ZCard(ctx, q.delayedKey()).Result()
	if err != nil {
		return counts, fmt.Errorf("failed to count delayed jobs: %w", err)
	}
	active, err := q.rdb.LLen(ctx, q.activeKey()).Result()
	if err != nil {
		return counts, fmt.Errorf("failed to count active jobs: %w", err)
	}
	completed, _ := q.rdb.Get(ctx, q.completedKey()).Int64()
	failed, _ := q.rdb.Get(ctx, q.failedKey()).Int64()

	counts.Waiting = waiting + delayed
	counts.Active = active
	counts.Completed = completed
	counts.Failed = failed
	return counts, nil
}

// CountSessionJobs returns how many waiting, delayed or active jobs reference
// the given session. Used by the completion monitor.
func (q *Queue) CountSessionJobs(ctx context.Context, sessionID string) (int64, error) {
	var total int64

	for _, key := range []string{q.waitingKey(), q.activeKey()} {
		raws, err := q.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return 0, err
		}
		total += countSession(raws, sessionID)
	}

	raws, err := q.rdb.ZRange(ctx, q.delayedKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	total += countSession(raws, sessionID)

	return total, nil
}

// RemoveSessionJobs deletes every waiting and delayed job of a session.
// Active jobs are deliberately left alone: an in-flight job always runs to
// completion or failure so the clip store never ends up ambiguous.
func (q *Queue) RemoveSessionJobs(ctx context.Context, sessionID string) (int64, error) {
	var removed int64

	waiting, err := q.rdb.LRange(ctx, q.waitingKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list waiting jobs: %w", err)
	}
	for _, raw := range waiting {
		if !jobBelongsTo(raw, sessionID) {
			continue
		}
		n, err := q.rdb.LRem(ctx, q.waitingKey(), 1, raw).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}

	delayed, err := q.rdb.ZRange(ctx, q.delayedKey(), 0, -1).Result()
	if err != nil {
		return removed, fmt.Errorf("failed to list delayed jobs: %w", err)
	}
	for _, raw := range delayed {
		if !jobBelongsTo(raw, sessionID) {
			continue
		}
		n, err := q.rdb.ZRem(ctx, q.delayedKey(), raw).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}

	return removed, nil
}

// RetryDelay computes the exponential backoff delay before the given attempt
// (1-based): base, base*2, base*4, ...
func (q *Queue) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.backoffBase << (attempt - 1)
}

func countSession(raws []string, sessionID string) int64 {
	var n int64
	for _, raw := range raws {
		if jobBelongsTo(raw, sessionID) {
			n++
		}
	}
	return n
}

func jobBelongsTo(raw, sessionID string) bool {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return false
	}
	return job.SessionID == sessionID
}

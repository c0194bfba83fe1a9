package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// How long a blocking pop waits before re-checking pause state and
	// promoting due retries
	pollTimeout = 5 * time.Second

	pausedSleep = 1 * time.Second
)

// Handler processes one job. Returning an error schedules a retry until the
// job's attempts are exhausted; returning nil completes the job.
type Handler func(ctx context.Context, job *Job) error

// ExhaustedFunc is called once when a job has failed its final attempt
type ExhaustedFunc func(ctx context.Context, job *Job, err error)

// Worker pulls jobs from a queue with a fixed number of goroutines. Jobs move
// waiting -> active atomically via BLMOVE, so a crash mid-job leaves the
// payload parked in the active list instead of losing it.
type Worker struct {
	queue       *Queue
	rdb         *redis.Client
	handler     Handler
	onExhausted ExhaustedFunc
	concurrency int
	logger      *zap.Logger
}

// NewWorker creates a worker for the given queue
func NewWorker(rdb *redis.Client, q *Queue, handler Handler, concurrency int, logger *zap.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		rdb:         rdb,
		handler:     handler,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OnExhausted registers the callback invoked when a job runs out of attempts
func (w *Worker) OnExhausted(fn ExhaustedFunc) {
	w.onExhausted = fn
}

// Run blocks until ctx is cancelled, processing jobs with the configured
// concurrency. Jobs stranded in the active list by a previous crash are
// re-queued before any slot starts pulling.
func (w *Worker) Run(ctx context.Context) {
	if n, err := w.queue.RequeueStalled(ctx); err != nil {
		w.logger.Warn("Failed to requeue stalled jobs",
			zap.String("queue", w.queue.Name()), zap.Error(err))
	} else if n > 0 {
		w.logger.Warn("♻️ Re-queued jobs left active by a previous crash",
			zap.String("queue", w.queue.Name()), zap.Int64("jobs", n))
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	log := w.logger.With(
		zap.String("queue", w.queue.Name()),
		zap.Int("slot", slot),
	)
	log.Info("👷 Worker slot started")

	for {
		if ctx.Err() != nil {
			log.Info("Worker slot stopping")
			return
		}

		paused, err := w.queue.IsPaused(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("Failed to check pause state", zap.Error(err))
			sleepCtx(ctx, pausedSleep)
			continue
		}
		if paused {
			sleepCtx(ctx, pausedSleep)
			continue
		}

		if err := w.queue.promoteDelayed(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Failed to promote delayed jobs", zap.Error(err))
		}

		raw, err := w.rdb.BLMove(ctx, w.queue.waitingKey(), w.queue.activeKey(), "RIGHT", "LEFT", pollTimeout).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.Warn("Failed to receive job", zap.Error(err))
			sleepCtx(ctx, pausedSleep)
			continue
		}

		w.process(ctx, log, raw)
	}
}

func (w *Worker) process(ctx context.Context, log *zap.Logger, raw string) {
	// Always clear the active entry; retries re-enter through the delayed set
	defer w.rdb.LRem(context.WithoutCancel(ctx), w.queue.activeKey(), 1, raw)

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error("Dropping undecodable job payload", zap.Error(err))
		w.rdb.Incr(context.WithoutCancel(ctx), w.queue.failedKey())
		return
	}
	job.Attempt++

	jobLog := log.With(
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
		zap.Int("attempt", job.Attempt),
	)
	jobLog.Info("🎬 Processing job")

	start := time.Now()
	err := w.handler(ctx, &job)
	if err == nil {
		w.rdb.Incr(context.WithoutCancel(ctx), w.queue.completedKey())
		jobLog.Info("✅ Job completed", zap.Duration("duration", time.Since(start)))
		return
	}

	if job.Attempt >= job.MaxAttempts {
		w.rdb.Incr(context.WithoutCancel(ctx), w.queue.failedKey())
		jobLog.Error("❌ Job failed permanently", zap.Error(err))
		if w.onExhausted != nil {
			w.onExhausted(context.WithoutCancel(ctx), &job, err)
		}
		return
	}

	delay := w.queue.RetryDelay(job.Attempt)
	jobLog.Warn("🔁 Job failed, scheduling retry",
		zap.Error(err),
		zap.Duration("delay", delay),
	)
	if qerr := w.queue.enqueueDelayed(context.WithoutCancel(ctx), &job, delay); qerr != nil {
		jobLog.Error("Failed to schedule retry", zap.Error(qerr))
		w.rdb.Incr(context.WithoutCancel(ctx), w.queue.failedKey())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

const (
	keyPrefix     = "wn:jobs:"
	pendingKey    = keyPrefix + "pending"
	processingKey = keyPrefix + "processing"
	scheduledKey  = keyPrefix + "scheduled"
	statsKey      = keyPrefix + "stats"

	// JobTTL bounds how long a job record (and its live marker) survives.
	// Failed jobs stay inspectable for that long.
	JobTTL = 72 * time.Hour

	defaultWorkers   = 2
	jobTimeout       = 2 * time.Minute
	stuckAfter       = 10 * time.Minute
	promoteInterval  = time.Second
	recoverInterval  = time.Minute
	dequeueTimeout   = time.Second
	promoteBatchSize = 100
)

var ErrJobNotFound = errors.New("job not found")

// Handler executes one job. A returned error schedules another attempt while
// attempts remain.
type Handler func(ctx context.Context, job *Job) error

// Queue is a Redis backed job queue. Pending jobs sit in a list, running
// jobs in a processing list and failed jobs waiting for a retry in a sorted
// set scored by their next run time, so retries survive restarts.
type Queue struct {
	client  *redis.Client
	workers int
	now     func() time.Time

	handlersMu sync.RWMutex
	handlers   map[JobType]Handler

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		client:   client,
		workers:  workers,
		now:      time.Now,
		handlers: map[JobType]Handler{},
	}
}

func jobKey(id string) string { return keyPrefix + "job:" + id }

func liveKey(t JobType, key string) string { return keyPrefix + "live:" + string(t) + ":" + key }

// Register binds a handler to a job type.
func (q *Queue) Register(jobType JobType, h Handler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[jobType] = h
}

func (q *Queue) handler(jobType JobType) (Handler, bool) {
	q.handlersMu.RLock()
	defer q.handlersMu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Start launches the workers and the scheduler. It is a no-op when running.
func (q *Queue) Start() {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.scheduler(ctx)
}

// Stop waits for running jobs to finish.
func (q *Queue) Stop() {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.cancel == nil {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	q.cancel()
	q.wg.Wait()
	q.cancel = nil
	log.Info("[JobQueue] All workers stopped")
}

// Enqueue adds a job without a dedup key.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload any) (*Job, error) {
	job, _, err := q.EnqueueUnique(ctx, jobType, "", payload)
	return job, err
}

// EnqueueUnique adds a job unless a live job with the same type and key
// exists, in which case it returns (nil, false, nil). The key is released
// when the job completes or runs out of attempts.
func (q *Queue) EnqueueUnique(ctx context.Context, jobType JobType, key string, payload any) (*Job, bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	now := q.now()
	job := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Key:         key,
		Status:      JobStatusPending,
		Payload:     data,
		MaxAttempts: DefaultMaxAttempts,
		QueuedAt:    now,
	}
	record, err := json.Marshal(job)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		claimed, err := q.client.SetNX(ctx, liveKey(jobType, key), job.ID, JobTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("claim %s %s: %w", jobType, key, err)
		}
		if !claimed {
			log.Debugf("[JobQueue] %s for %s already queued", jobType, key)
			return nil, false, nil
		}
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), record, JobTTL)
	pipe.LPush(ctx, pendingKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		if key != "" {
			_ = q.client.Del(ctx, liveKey(jobType, key)).Err()
		}
		return nil, false, fmt.Errorf("enqueue %s: %w", jobType, err)
	}

	log.Infof("[JobQueue] Enqueued %s job %s (key=%s)", job.Type, job.ID, key)
	return job, true, nil
}

// Lookup returns a stored job.
func (q *Queue) Lookup(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Stats reads queue depths and the running totals in one round trip.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, pendingKey)
	processing := pipe.LLen(ctx, processingKey)
	scheduled := pipe.ZCard(ctx, scheduledKey)
	totals := pipe.HGetAll(ctx, statsKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}

	counter := func(name string) int64 {
		n, _ := strconv.ParseInt(totals.Val()[name], 10, 64)
		return n
	}
	return Stats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Scheduled:  scheduled.Val(),
		Completed:  counter("completed"),
		Retried:    counter("retried"),
		Failed:     counter("failed"),
	}, nil
}

func (q *Queue) worker(ctx context.Context, n int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", n)

	for {
		job, err := q.claim(ctx)
		if ctx.Err() != nil {
			log.Infof("[JobQueue] Worker %d stopping", n)
			return
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Errorf("[JobQueue] Worker %d: claim failed: %v", n, err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		q.run(context.WithoutCancel(ctx), job)
	}
}

// claim moves the oldest pending job to the processing list and loads it.
func (q *Queue) claim(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, pendingKey, processingKey, "RIGHT", "LEFT", dequeueTimeout).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.Lookup(ctx, id)
	if err != nil {
		_ = q.client.LRem(ctx, processingKey, 1, id).Err()
		return nil, fmt.Errorf("load claimed job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) run(ctx context.Context, job *Job) {
	job.start(q.now())
	q.save(ctx, job)

	err := q.execute(ctx, job)
	if err == nil {
		q.complete(ctx, job)
		return
	}

	log.Errorf("[JobQueue] %s job %s (key=%s) attempt %d failed: %v", job.Type, job.ID, job.Key, job.Attempts+1, err)
	next, retry := job.fail(err, q.now())
	record, merr := json.Marshal(job)
	if merr != nil {
		log.Errorf("[JobQueue] Failed to encode job %s: %v", job.ID, merr)
		return
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), record, JobTTL)
	pipe.LRem(ctx, processingKey, 1, job.ID)
	if retry {
		pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(next.Unix()), Member: job.ID})
		pipe.HIncrBy(ctx, statsKey, "retried", 1)
	} else {
		if job.Key != "" {
			pipe.Del(ctx, liveKey(job.Type, job.Key))
		}
		pipe.HIncrBy(ctx, statsKey, "failed", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[JobQueue] Failed to record failure of job %s: %v", job.ID, err)
	}

	if retry {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "retry").Inc()
		log.Infof("[JobQueue] Job %s retries at %s (attempt %d/%d)", job.ID, next.Format(time.RFC3339), job.Attempts+1, job.MaxAttempts)
	} else {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		log.Errorf("[JobQueue] Job %s gave up after %d attempts", job.ID, job.Attempts)
	}
}

func (q *Queue) execute(ctx context.Context, job *Job) error {
	h, ok := q.handler(job.Type)
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return h(ctx, job)
}

func (q *Queue) complete(ctx context.Context, job *Job) {
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, jobKey(job.ID))
	pipe.LRem(ctx, processingKey, 1, job.ID)
	if job.Key != "" {
		pipe.Del(ctx, liveKey(job.Type, job.Key))
	}
	pipe.HIncrBy(ctx, statsKey, "completed", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[JobQueue] Failed to clear completed job %s: %v", job.ID, err)
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "completed").Inc()
	log.Infof("[JobQueue] %s job %s (key=%s) completed", job.Type, job.ID, job.Key)
}

func (q *Queue) save(ctx context.Context, job *Job) {
	record, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to encode job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, jobKey(job.ID), record, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to save job %s: %v", job.ID, err)
	}
}

// scheduler moves due retries back to the pending list and recovers jobs
// left in processing by a worker that died.
func (q *Queue) scheduler(ctx context.Context) {
	defer q.wg.Done()
	promote := time.NewTicker(promoteInterval)
	defer promote.Stop()
	sweep := time.NewTicker(recoverInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-promote.C:
			if _, err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue] Promoting retries failed: %v", err)
			}
		case <-sweep.C:
			if _, err := q.recoverStuck(ctx, stuckAfter); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue] Recovering stuck jobs failed: %v", err)
			}
		}
	}
}

// promoteDue requeues scheduled jobs whose run time has passed. ZRem decides
// which instance promotes a job when several share the queue.
func (q *Queue) promoteDue(ctx context.Context) (int, error) {
	now := q.now()
	ids, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, scheduledKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		job, err := q.Lookup(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return promoted, err
		}
		job.requeue(now)
		q.save(ctx, job)
		if err := q.client.LPush(ctx, pendingKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// recoverStuck puts jobs that have sat in the processing list longer than
// maxAge back on the pending list.
func (q *Queue) recoverStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	now := q.now()
	recovered := 0
	for _, id := range ids {
		job, err := q.Lookup(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			_ = q.client.LRem(ctx, processingKey, 1, id).Err()
			continue
		}
		if err != nil {
			log.Warnf("[JobQueue] Dropping unreadable job %s: %v", id, err)
			_ = q.client.LRem(ctx, processingKey, 1, id).Err()
			continue
		}

		since := job.QueuedAt
		if job.StartedAt != nil {
			since = *job.StartedAt
		}
		if now.Sub(since) <= maxAge {
			continue
		}

		log.Warnf("[JobQueue] Recovering stuck %s job %s (key=%s), idle %s", job.Type, job.ID, job.Key, now.Sub(since).Round(time.Second))
		job.requeue(now)
		job.LastError = "recovered after worker stopped"
		q.save(ctx, job)
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, processingKey, 1, id)
		pipe.RPush(ctx, pendingKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

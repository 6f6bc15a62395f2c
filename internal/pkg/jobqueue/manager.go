package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

// BacklogFunc queues pending work and reports how many jobs it added.
type BacklogFunc func(ctx context.Context, limit int) (int, error)

const (
	defaultBacklogInterval = 15 * time.Minute
	statsInterval          = 30 * time.Second
	BacklogBatchSize       = 100
)

// Manager runs the queue with the periodic archive backlog sweep and
// publishes queue depths as gauges.
type Manager struct {
	queue           *Queue
	backlog         BacklogFunc
	backlogInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wraps queue. backlog may be nil, in which case no sweep runs.
func NewManager(queue *Queue, backlog BacklogFunc, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = defaultBacklogInterval
	}
	return &Manager{
		queue:           queue,
		backlog:         backlog,
		backlogInterval: interval,
	}
}

func (m *Manager) Queue() *Queue {
	return m.queue
}

func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()
	m.wg.Add(1)
	go m.loop(ctx)
}

func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	m.cancel()
	m.wg.Wait()
	m.cancel = nil
	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped")
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	backlog := time.NewTicker(m.backlogInterval)
	defer backlog.Stop()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	m.PublishStats(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-backlog.C:
			if _, err := m.RunBacklogOnce(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue Manager] Backlog sweep error: %v", err)
			}
		case <-stats.C:
			m.PublishStats(ctx)
		}
	}
}

// RunBacklogOnce runs a single backlog sweep. wnctl jobs sweep calls it
// directly.
func (m *Manager) RunBacklogOnce(ctx context.Context) (int, error) {
	if m.backlog == nil {
		return 0, nil
	}
	n, err := m.backlog(ctx, BacklogBatchSize)
	if err != nil {
		return n, err
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Queued %d backlog jobs", n)
	}
	return n, nil
}

// PublishStats copies the queue snapshot into the job queue gauges.
func (m *Manager) PublishStats(ctx context.Context) {
	s, err := m.queue.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("[JobQueue Manager] Reading queue stats failed: %v", err)
		}
		return
	}
	metrics.JobQueueSize.WithLabelValues("pending").Set(float64(s.Pending))
	metrics.JobQueueSize.WithLabelValues("processing").Set(float64(s.Processing))
	metrics.JobQueueSize.WithLabelValues("scheduled").Set(float64(s.Scheduled))
}

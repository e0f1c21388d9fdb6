package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task is one unit of work run by the queue. Tasks are never retried and never
// cancelled once picked up.
type Task struct {
	ID       string
	Name     string
	Run      func(context.Context) error
	Enqueued time.Time
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory task dispatcher backed by goroutines. It lets
// an input loop hand off user actions without waiting on their network calls.
type Queue struct {
	name    string
	workers int
	logger  *zap.Logger

	tasks   chan Task
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewQueue builds a new queue.
func NewQueue(name string, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		workers: cfg.Workers,
		logger:  cfg.Logger,
		tasks:   make(chan Task, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once; ctx is handed to every task.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx = ctx
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Debugw("queue started", "queue", q.name, "workers", q.workers)
}

// Stop refuses new tasks, lets workers finish everything already queued and waits.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Debugw("queue stopped", "queue", q.name)
}

// Enqueue pushes a task onto the queue.
func (q *Queue) Enqueue(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("queue %s: task %q has no run function", q.name, task.Name)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.closed {
		return fmt.Errorf("queue %s stopped", q.name)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	q.tasks <- task
	return nil
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for task := range q.tasks {
		start := time.Now()
		if err := task.Run(q.ctx); err != nil {
			q.logger.Sugar().Debugw("task failed", "queue", q.name, "worker", workerID, "task_id", task.ID, "task", task.Name, "error", err)
			continue
		}
		q.logger.Sugar().Debugw("task done", "queue", q.name, "worker", workerID, "task_id", task.ID, "task", task.Name, "latency", time.Since(start))
	}
}

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// Processor performs the actual matching, move, and writeback for one
// task. It may mutate the task's RowIndex, ProcessedLocation, and
// OriginalHyperlink fields; the queue owns the status fields.
type Processor func(ctx context.Context, task *Task) error

// HistoryStore receives a snapshot of every task that reaches a terminal
// status. Implementations must be safe for sequential calls from the
// worker goroutine.
type HistoryStore interface {
	Record(ctx context.Context, task Task) error
}

// EventType identifies a queue notification.
type EventType string

// Queue event types.
const (
	TaskEnqueued  EventType = "task.enqueued"
	TaskStarted   EventType = "task.started"
	TaskCompleted EventType = "task.completed"
	TaskFailed    EventType = "task.failed"
	TaskRetried   EventType = "task.retried"
)

// TaskEvent is the payload delivered to queue subscribers. Task is a
// snapshot; mutating it has no effect on the queue.
type TaskEvent struct {
	Type      EventType `json:"type"`
	Task      Task      `json:"task"`
	Error     *string   `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Queue is the single-worker processing queue. All exported methods are
// safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   map[string]*Task
	order   []string
	stopped bool
	started bool

	process Processor
	history HistoryStore
	bus     *events.TypedEventBus[TaskEvent]
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// New builds a queue around a processor. history may be nil when no
// durable record is wanted; a nil logger disables logging.
func New(process Processor, history HistoryStore, logger *zap.Logger) (*Queue, error) {
	if process == nil {
		return nil, fmt.Errorf("queue requires a processor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[TaskEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize queue event bus: %w", err)
	}
	q := &Queue{
		tasks:   map[string]*Task{},
		process: process,
		history: history,
		bus:     bus,
		logger:  logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.run(ctx)
}

// Stop signals the worker to exit after its current task and waits for it.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	started := q.started
	q.mu.Unlock()
	if started {
		q.wg.Wait()
	}
}

// Add enqueues a task and wakes the worker.
func (q *Queue) Add(task *Task) {
	q.mu.Lock()
	task.Status = StatusPending
	q.tasks[task.ID] = task
	q.order = append(q.order, task.ID)
	q.cond.Broadcast()
	snapshot := *task
	q.mu.Unlock()

	q.logger.Debug("Task enqueued",
		zap.String("id", snapshot.ID),
		zap.String("pdf", snapshot.PDFPath))
	q.emit(TaskEnqueued, snapshot, nil)
}

// RetryFailed flips every failed task back to pending and wakes the
// worker.
func (q *Queue) RetryFailed() {
	q.mu.Lock()
	var retried []Task
	for _, id := range q.order {
		task := q.tasks[id]
		if task.Status == StatusFailed {
			task.Status = StatusPending
			task.ErrorMsg = ""
			task.FinishedAt = time.Time{}
			retried = append(retried, *task)
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, snapshot := range retried {
		q.emit(TaskRetried, snapshot, nil)
	}
}

// ClearCompleted drops completed tasks from the queue's live view.
func (q *Queue) ClearCompleted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.order[:0]
	for _, id := range q.order {
		if q.tasks[id].Status == StatusCompleted {
			delete(q.tasks, id)
			continue
		}
		remaining = append(remaining, id)
	}
	q.order = remaining
}

// Snapshot groups copies of all live tasks by status.
func (q *Queue) Snapshot() map[Status][]Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := map[Status][]Task{}
	for _, id := range q.order {
		task := q.tasks[id]
		out[task.Status] = append(out[task.Status], *task)
	}
	return out
}

// Drain blocks until no task is pending or processing, or the context is
// cancelled.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		busy := q.busyLocked()
		stopped := q.stopped
		q.mu.Unlock()
		if !busy || stopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) busyLocked() bool {
	for _, id := range q.order {
		switch q.tasks[id].Status {
		case StatusPending, StatusProcessing:
			return true
		}
	}
	return false
}

// Subscribe registers a callback for a queue event type and returns its
// unsubscribe function.
func (q *Queue) Subscribe(t EventType, cb func(ctx context.Context, event TaskEvent) error) func() {
	return q.bus.Subscribe(string(t), cb)
}

func (q *Queue) emit(t EventType, task Task, err error) {
	event := TaskEvent{Type: t, Task: task, Timestamp: time.Now()}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
	}
	q.bus.Emit(string(t), event)
}

// run is the worker loop: claim the oldest pending task, process it, and
// settle its terminal status.
func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		task := q.nextPendingLocked()
		for task == nil && !q.stopped {
			q.cond.Wait()
			task = q.nextPendingLocked()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}
		task.Status = StatusProcessing
		snapshot := *task
		q.mu.Unlock()

		q.emit(TaskStarted, snapshot, nil)
		q.logger.Info("Processing task",
			zap.String("id", snapshot.ID),
			zap.String("pdf", snapshot.PDFPath))

		// The processor works on a copy; results are merged back under
		// the lock so Snapshot never observes a half-written task.
		working := snapshot
		err := q.process(ctx, &working)
		q.settle(ctx, task, &working, err)

		if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) nextPendingLocked() *Task {
	for _, id := range q.order {
		if q.tasks[id].Status == StatusPending {
			return q.tasks[id]
		}
	}
	return nil
}

func (q *Queue) settle(ctx context.Context, task *Task, worked *Task, err error) {
	q.mu.Lock()
	task.RowIndex = worked.RowIndex
	task.ProcessedLocation = worked.ProcessedLocation
	task.OriginalHyperlink = worked.OriginalHyperlink
	task.FinishedAt = time.Now()
	if err != nil {
		task.Status = StatusFailed
		task.ErrorMsg = err.Error()
	} else {
		task.Status = StatusCompleted
		task.ErrorMsg = ""
	}
	snapshot := *task
	q.cond.Broadcast()
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("Task failed",
			zap.String("id", snapshot.ID),
			zap.Error(err))
		q.emit(TaskFailed, snapshot, err)
	} else {
		q.logger.Info("Task completed",
			zap.String("id", snapshot.ID),
			zap.String("output", snapshot.ProcessedLocation))
		q.emit(TaskCompleted, snapshot, nil)
	}

	if q.history != nil {
		if herr := q.history.Record(ctx, snapshot); herr != nil {
			q.logger.Error("Failed to record task history",
				zap.String("id", snapshot.ID),
				zap.Error(herr))
		}
	}
}

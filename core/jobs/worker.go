package jobs

import (
	"context"
	"sync"
	"time"

	"medrota-iam/core/utils"
)

const taskTimeout = 10 * time.Second

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Worker runs fire-and-forget work (session activity touches, SMS
// deliveries) off the request path. Each task gets its own timeout so a
// slow delivery cannot wedge the queue.
type Worker struct {
	logger *utils.Logger
	queue  chan task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewWorker(logger *utils.Logger) *Worker {
	return &Worker{
		logger: logger,
		queue:  make(chan task, 512),
	}
}

func (w *Worker) StartWithContext(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	for i := 0; i < 4; i++ {
		w.wg.Add(1)
		go w.loop(runCtx)
	}
}

func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Submit enqueues a task. When the queue is full the task runs inline
// so nothing is silently dropped.
func (w *Worker) Submit(name string, fn func(ctx context.Context) error) {
	t := task{name: name, fn: fn}
	select {
	case w.queue <- t:
	default:
		w.run(context.Background(), t)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case t := <-w.queue:
					w.run(context.Background(), t)
				default:
					return
				}
			}
		case t := <-w.queue:
			w.run(ctx, t)
		}
	}
}

func (w *Worker) run(ctx context.Context, t task) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), taskTimeout)
	defer cancel()
	if err := t.fn(runCtx); err != nil && w.logger != nil {
		w.logger.Errorf("background task %s: %v", t.name, err)
	}
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrSpawnerClosed is returned by PoolSpawner.Spawn after Close.
var ErrSpawnerClosed = errors.New("spawner closed")

// ErrQueueFull is returned by PoolSpawner.Spawn when the queue has no room.
var ErrQueueFull = errors.New("reconciliation queue full")

// Spawner runs tasks in the background.
type Spawner interface {
	// Spawn schedules task. It never blocks on the task itself.
	Spawn(task func()) error
}

// GoSpawner runs every task on a new goroutine. Tasks are neither tracked
// nor cancelled.
type GoSpawner struct{}

var _ Spawner = GoSpawner{}

// Spawn implements Spawner.
func (GoSpawner) Spawn(task func()) error {
	go task()
	return nil
}

// Default pool sizing.
const (
	DefaultPoolWorkers = 2
	DefaultPoolQueue   = 8
)

// PoolSpawner runs tasks on a fixed number of workers.
//
// Design decision: Workers are managed by an errgroup so Close can wait for
// them with a single call, the same way batch scans are joined elsewhere.
type PoolSpawner struct {
	mu     sync.RWMutex
	queue  chan func()
	closed bool

	group  *errgroup.Group
	cancel context.CancelFunc
	logger *slog.Logger
	once   sync.Once
}

var _ Spawner = (*PoolSpawner)(nil)

// PoolOption configures a PoolSpawner.
type PoolOption func(*poolOptions)

type poolOptions struct {
	workers int
	queue   int
	logger  *slog.Logger
}

// WithWorkers sets the number of workers. Values below 1 are ignored.
func WithWorkers(n int) PoolOption {
	return func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity. Negative values are ignored.
func WithQueueSize(n int) PoolOption {
	return func(o *poolOptions) {
		if n >= 0 {
			o.queue = n
		}
	}
}

// WithPoolLogger sets the logger for dropped and failed tasks.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(o *poolOptions) {
		o.logger = logger
	}
}

// NewPoolSpawner starts the workers. Call Close to stop them.
func NewPoolSpawner(opts ...PoolOption) *PoolSpawner {
	o := poolOptions{workers: DefaultPoolWorkers, queue: DefaultPoolQueue}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &PoolSpawner{
		queue:  make(chan func(), o.queue),
		group:  g,
		cancel: cancel,
		logger: o.logger,
	}
	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return p
}

func (p *PoolSpawner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *PoolSpawner) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("reconciliation task failed", "panic", fmt.Sprint(r))
		}
	}()
	task()
}

// Spawn queues task. When the queue is full the task is dropped, logged and
// ErrQueueFull is returned.
func (p *PoolSpawner) Spawn(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrSpawnerClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		p.logger.Warn("dropping reconciliation run", "reason", "queue full", "capacity", cap(p.queue))
		return ErrQueueFull
	}
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit.
func (p *PoolSpawner) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		_ = p.group.Wait() //nolint:errcheck // workers never return errors
		p.cancel()
	})
}

// Package loop provides the single logical execution context the player runs on.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Do once the loop has shut down
var ErrStopped = errors.New("loop stopped")

// Loop runs posted functions one at a time, in order, on a dedicated goroutine
type Loop struct {
	logger  *zap.Logger
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a loop; call Start to begin processing
func New(logger *zap.Logger) *Loop {
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the processing goroutine. It returns immediately (non-blocking).
// A stopped loop cannot be restarted.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if l.running {
		return nil
	}
	l.running = true

	// The loop outlives the start context; Stop ends it
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel

	l.wg.Add(1)
	go l.run(loopCtx)

	l.logger.Debug("Loop started")
	return nil
}

// Stop ends processing after the function currently running returns.
// Functions still queued are discarded.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.stopped = true
	l.cancel()
	l.mu.Unlock()

	l.wg.Wait()
	close(l.done)

	l.mu.Lock()
	dropped := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	l.logger.Debug("Loop stopped", zap.Int("dropped", dropped))
	return nil
}

// Post queues fn without blocking
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every posts fn at a fixed interval until the returned cancel is called.
// Invocations already queued when cancel runs are skipped.
func (l *Loop) Every(interval time.Duration, fn func()) func() {
	var cancelled atomic.Bool
	quit := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if cancelled.Load() {
						return
					}
					fn()
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelled.Store(true)
			close(quit)
		})
	}
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}

			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.invoke(fn)
		}
	}
}

// invoke keeps a panicking task from taking the whole loop down
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic in loop task", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Package tasks runs fire-and-forget work off the request path.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Runner accepts background work. Callers never wait on it and never see its errors.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Dispatcher is a bounded goroutine pool. When the pool is saturated new work
// is dropped and logged instead of blocking the caller.
type Dispatcher struct {
	pool    *ants.Pool
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// New creates a dispatcher with size workers; each task gets its own
// context bounded by timeout.
func New(size int, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("background task panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, logger: logger, timeout: timeout}, nil
}

// Go submits fn. Failures are logged at warn level with the task name.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	})
	if err != nil {
		d.wg.Done()
		d.logger.Warn("background task dropped", zap.String("task", name), zap.Error(err))
	}
}

// Wait blocks until every submitted task has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close drains outstanding tasks, then releases the pool
func (d *Dispatcher) Close() {
	d.Wait()
	d.pool.Release()
}

// Package worker provides goroutine pool management. All background
// concurrency goes through a pool with context propagation.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"domainhub.io/hubd/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission. One pool serves the
// whole process; it carries the event fanout to websocket sessions and
// any other background work.
type Pool struct {
	pool *ants.Pool

	// serviceCtx is the service lifecycle context for detached tasks
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewPool creates the pool with the given worker cap.
func NewPool(ctx context.Context, size int) (*Pool, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	inner, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	return &Pool{pool: inner, serviceCtx: serviceCtx, serviceCancel: serviceCancel}, nil
}

// Submit submits a context-aware task. The task receives the caller's
// context and should check ctx.Done() at blocking points. If the context
// is already cancelled the task is never submitted.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.pool.Submit(func() {
		// May have been cancelled while queued.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled", zap.Error(ctx.Err()))
			return
		default:
		}
		task(ctx)
	})
}

// SubmitDetached submits a background task bound to the service lifecycle
// context instead of a request context. Use for work that should survive
// request cancellation but still respect graceful shutdown.
func (p *Pool) SubmitDetached(task Task) error {
	return p.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down")
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown cancels the service context, then waits for running tasks.
func (p *Pool) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Worker pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool occupancy for observability.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}

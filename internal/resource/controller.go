package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by Reserve when the requested
// bytes would push tracked memory past the configured limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config configures a Controller. Zero values disable the
// corresponding mechanism.
type Config struct {
	// MemoryLimitBytes caps tracked memory. 0 means track only, never
	// reject.
	MemoryLimitBytes int64

	// BackgroundSlots bounds concurrent background materialization
	// work. 0 means unbounded.
	BackgroundSlots int

	// PaceEvery spaces background batches: at most one batch token is
	// issued per interval. 0 disables pacing.
	PaceEvery time.Duration
}

// Controller tracks memory held by the stores and gates background
// work. See the package doc for the three mechanisms.
type Controller struct {
	memSem   *semaphore.Weighted
	memLimit int64
	memUsed  atomic.Int64

	bgSem   *semaphore.Weighted
	bgSlots int

	pacer *rate.Limiter
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		memLimit: cfg.MemoryLimitBytes,
		bgSlots:  cfg.BackgroundSlots,
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.BackgroundSlots > 0 {
		c.bgSem = semaphore.NewWeighted(int64(cfg.BackgroundSlots))
	}
	if cfg.PaceEvery > 0 {
		c.pacer = rate.NewLimiter(rate.Every(cfg.PaceEvery), 1)
	}
	return c
}

// Reserve registers n bytes of tracked memory. With a limit configured
// it fails fast with ErrMemoryLimitExceeded instead of blocking;
// callers are expected to evict and retry. n <= 0 is a no-op.
func (c *Controller) Reserve(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.memSem != nil {
		if !c.memSem.TryAcquire(n) {
			return ErrMemoryLimitExceeded
		}
	}
	c.memUsed.Add(n)
	return nil
}

// Release returns n bytes previously registered with Reserve.
func (c *Controller) Release(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(n)
	}
	c.memUsed.Add(-n)
}

// MemoryUsed reports currently tracked bytes.
func (c *Controller) MemoryUsed() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit reports the configured cap, 0 if tracking only.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.memLimit
}

// AcquireSlot blocks until a background slot is free or ctx is done.
func (c *Controller) AcquireSlot(ctx context.Context) error {
	if c == nil || c.bgSem == nil {
		return ctx.Err()
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireSlot grabs a background slot without blocking.
func (c *Controller) TryAcquireSlot() bool {
	if c == nil || c.bgSem == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseSlot returns a slot taken by AcquireSlot or TryAcquireSlot.
func (c *Controller) ReleaseSlot() {
	if c == nil || c.bgSem == nil {
		return
	}
	c.bgSem.Release(1)
}

// Slots reports the configured background slot count, 0 if unbounded.
func (c *Controller) Slots() int {
	if c == nil {
		return 0
	}
	return c.bgSlots
}

// Pace blocks until the pacer issues a batch token or ctx is done.
// Without pacing configured it returns immediately.
func (c *Controller) Pace(ctx context.Context) error {
	if c == nil || c.pacer == nil {
		return ctx.Err()
	}
	return c.pacer.Wait(ctx)
}

// Package debounce schedules requests per logical target. A target waits for
// a quiet period after the last change, runs at most one request at a time,
// and aborts the previous request when a new one starts.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

// DefaultDelay is the quiet period used when none is configured
const DefaultDelay = 400 * time.Millisecond

// Task performs one request. It returns a commit function that applies the
// result; commit runs only if the task is still the target's current request
// and never concurrently with another commit of the same controller.
type Task func(ctx context.Context) (commit func(), err error)

type target struct {
	timer   *time.Timer
	pending uint64 // bumps on every schedule; stale timers compare against it
	token   uint64 // bumps on every start; stale results compare against it
	cancel  context.CancelCauseFunc
	running bool
}

// Controller debounces tasks by target name.
// Lock order: the controller lock is held while commit runs, so commit may
// take other locks but callers must not hold those locks while calling the
// controller.
type Controller struct {
	delay   time.Duration
	logger  *slog.Logger
	onError func(target string, err error)

	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	targets map[string]*target
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithErrorHandler receives failures that are not aborts
func WithErrorHandler(fn func(target string, err error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// New creates a controller. delay <= 0 uses DefaultDelay.
func New(delay time.Duration, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	base, stop := context.WithCancel(context.Background())
	c := &Controller{
		delay:   delay,
		logger:  logger,
		base:    base,
		stop:    stop,
		targets: make(map[string]*target),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns the quiet period
func (c *Controller) Delay() time.Duration { return c.delay }

func (c *Controller) target(name string) *target {
	t, ok := c.targets[name]
	if !ok {
		t = &target{}
		c.targets[name] = t
	}
	return t
}

// Schedule runs task after the quiet period, restarting the period if the
// target already has a task waiting.
func (c *Controller) Schedule(name string, task Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	t := c.target(name)
	if t.timer != nil {
		t.timer.Stop()
	}
	t.pending++
	seq := t.pending
	t.timer = time.AfterFunc(c.delay, func() {
		c.fire(name, seq, task)
	})
}

// Trigger runs task immediately, dropping any waiting task of the target
func (c *Controller) Trigger(name string, task Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	t := c.target(name)
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending++
	c.startLocked(name, t, task)
}

func (c *Controller) fire(name string, seq uint64, task Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.targets[name]
	if !ok || c.closed || t.pending != seq {
		return
	}
	t.timer = nil
	c.startLocked(name, t, task)
}

// startLocked aborts the running request of t and starts task. c.mu must be held.
func (c *Controller) startLocked(name string, t *target, task Task) {
	if t.cancel != nil {
		t.cancel(domain.ErrSuperseded)
	}
	ctx, cancel := context.WithCancelCause(c.base)
	t.token++
	token := t.token
	t.cancel = cancel
	t.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel(nil)

		commit, err := task(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()

		current := t.token == token
		if current {
			t.cancel = nil
			t.running = false
		}

		if err != nil {
			if domain.IsAborted(err) || !current {
				c.logger.Debug("request dropped", "target", name, "error", err)
				return
			}
			c.logger.Warn("request failed", "target", name, "error", err)
			if c.onError != nil {
				c.onError(name, err)
			}
			return
		}

		if !current || ctx.Err() != nil {
			c.logger.Debug("discarding superseded result", "target", name)
			return
		}
		if commit != nil {
			commit()
		}
	}()
}

// Cancel drops the waiting task of a target and aborts its running request
func (c *Controller) Cancel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.targets[name]
	if !ok {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending++
	t.token++
	t.running = false
	if t.cancel != nil {
		t.cancel(domain.ErrSuperseded)
		t.cancel = nil
	}
}

// Busy reports whether a target has a task waiting or running
func (c *Controller) Busy(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.targets[name]
	return ok && (t.timer != nil || t.running)
}

// Close cancels everything and waits for running tasks to return
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, t := range c.targets {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.pending++
		t.token++
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

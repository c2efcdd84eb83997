// Package coordinator runs the tick loop that turns registered cron jobs
// into exactly-once dispatches across a fleet: on each tick it enumerates
// due firings, serializes each one through a lease backend, invokes the
// job callback, and records the outcome through an audit backend.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/audit"
	"github.com/jrjohn/railscron-go/internal/clock"
	"github.com/jrjohn/railscron-go/internal/cronexpr"
	"github.com/jrjohn/railscron-go/internal/keys"
	"github.com/jrjohn/railscron-go/internal/observability"
	"github.com/jrjohn/railscron-go/internal/registry"
	"github.com/jrjohn/railscron-go/internal/resilience"
)

// State is the coordinator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrAlreadyRunning is returned by Start when the coordinator is not idle.
	ErrAlreadyRunning = errors.New("coordinator: already running")

	// ErrNotRunning is returned by Stop and Tick when the coordinator is idle.
	ErrNotRunning = errors.New("coordinator: not running")

	// ErrShutdownTimeout is returned by Stop when the tick loop does not
	// exit within the configured shutdown timeout.
	ErrShutdownTimeout = errors.New("coordinator: shutdown timed out")
)

const (
	leaseBreakerName = "coordinator.lease"
	auditBreakerName = "coordinator.audit"
)

// Config holds the tick loop's tunables, mirroring config.CoordinatorConfig
// but decoupled from the viper-backed loading layer.
type Config struct {
	TickInterval           time.Duration
	WindowLookback         time.Duration
	WindowLookahead        time.Duration
	LeaseTTL               time.Duration
	Namespace              string
	EnableAudit            bool
	EnableDispatchRecovery bool
	RecoveryWindow         time.Duration
	RecoveryStartupJitter  time.Duration
	ShutdownTimeout        time.Duration
}

// LeaseBackend is the subset of lease.Backend the coordinator depends on.
type LeaseBackend interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// AuditBackend is the subset of audit.Backend the coordinator depends on.
type AuditBackend interface {
	Log(ctx context.Context, jobKey string, firingInstant time.Time, nodeID string, status audit.Status) error
	Dispatched(ctx context.Context, jobKey string, firingInstant time.Time) (bool, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// alwaysAcquire is the lease used when no backend is configured: every
// acquisition succeeds, matching spec.md's "none (equivalent to
// always-acquire)" default.
type alwaysAcquire struct{}

func (alwaysAcquire) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

// TickResult summarizes one tick for callers that want to observe it (tests,
// the HTTP status surface).
type TickResult struct {
	FiringsEnumerated int
	Dispatched        int
	Failed            int
	Denied            int
}

// Coordinator is the C7/C8 tick loop and recovery procedure.
type Coordinator struct {
	config   Config
	clock    clock.Clock
	loc      *time.Location
	registry *registry.Registry
	lease    LeaseBackend
	audit    AuditBackend
	logger   *zap.Logger
	metrics  *observability.MetricsProvider
	breakers *resilience.CircuitBreakerRegistry
	nodeID   string

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	doneCh chan struct{}
	tickCh chan struct{}
}

// Option configures optional Coordinator dependencies.
type Option func(*Coordinator)

// WithAuditBackend wires a dispatch-history backend. Without this option
// dispatches are never recorded and recovery always redispatches everything
// in its window.
func WithAuditBackend(b AuditBackend) Option {
	return func(c *Coordinator) { c.audit = b }
}

// WithLeaseBackend wires a mutual-exclusion backend. Without this option
// the coordinator behaves as a single always-acquiring node.
func WithLeaseBackend(b LeaseBackend) Option {
	return func(c *Coordinator) { c.lease = b }
}

// WithMetrics wires an observability.MetricsProvider for tick/dispatch
// counters and histograms.
func WithMetrics(m *observability.MetricsProvider) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCircuitBreakers wires a shared circuit breaker registry protecting
// lease and audit backend calls.
func WithCircuitBreakers(r *resilience.CircuitBreakerRegistry) Option {
	return func(c *Coordinator) { c.breakers = r }
}

// WithNodeID overrides the randomly generated node identifier recorded in
// audit entries.
func WithNodeID(id string) Option {
	return func(c *Coordinator) { c.nodeID = id }
}

// New constructs a Coordinator. loc is the time zone cron expressions are
// evaluated in; a nil loc means time.Local.
func New(cfg Config, clk clock.Clock, reg *registry.Registry, loc *time.Location, logger *zap.Logger, opts ...Option) *Coordinator {
	if loc == nil {
		loc = time.Local
	}
	c := &Coordinator{
		config:   cfg,
		clock:    clk,
		loc:      loc,
		registry: reg,
		lease:    alwaysAcquire{},
		logger:   logger,
		nodeID:   uuid.New().String(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NodeID returns this coordinator's node identifier.
func (c *Coordinator) NodeID() string {
	return c.nodeID
}

// Start runs recovery (if enabled) synchronously, then launches the tick
// loop in a background goroutine. Start returns once the loop goroutine has
// been launched; it does not wait for the first tick.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = StateRunning
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.tickCh = make(chan struct{}, 1)
	c.mu.Unlock()

	if c.config.EnableDispatchRecovery {
		if err := c.runRecovery(ctx); err != nil {
			c.logger.Error("recovery failed", zap.Error(err))
		}
	}

	go c.loop()
	return nil
}

// Stop signals the tick loop to exit and waits up to ShutdownTimeout for it
// to do so.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StateStopping
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	timeout := c.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick triggers one synchronous tick outside the regular interval, matching
// spec.md's "tick!" manual invocation. It is safe to call while the loop is
// also running on its own ticker.
func (c *Coordinator) Tick(ctx context.Context) (TickResult, error) {
	if c.State() != StateRunning {
		return TickResult{}, ErrNotRunning
	}
	return c.doTick(ctx)
}

func (c *Coordinator) loop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if _, err := c.doTick(context.Background()); err != nil {
				c.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// doTick is the tick algorithm of spec.md §4.7: enumerate the lookback/
// lookahead window per job, dispatch every due firing under a lease, and
// best-effort log the outcome. Release is never called; the lease is left
// to expire via TTL so a re-tick inside the window cannot re-dispatch it.
func (c *Coordinator) doTick(ctx context.Context) (TickResult, error) {
	start := time.Now()
	var result TickResult

	now := c.clock.Now()
	windowStart := now.Add(-c.config.WindowLookback)
	windowEnd := now.Add(c.config.WindowLookahead)

	c.registry.Each(func(job registry.Job) {
		sched, err := cronexpr.Parse(job.Expression)
		if err != nil {
			c.logger.Error("invalid cron expression, skipping job",
				zap.String("job_key", job.Key), zap.Error(err))
			return
		}

		firings, err := sched.Enumerate(c.loc, windowStart, windowEnd)
		if err != nil {
			c.logger.Error("enumeration failed, skipping job",
				zap.String("job_key", job.Key), zap.Error(err))
			return
		}

		result.FiringsEnumerated += len(firings)
		if c.metrics != nil {
			c.metrics.RecordFiringsEnumerated(ctx, job.Key, len(firings))
		}

		for _, f := range firings {
			if f.After(now) {
				continue
			}
			c.dispatchFiring(ctx, job, f, &result)
		}
	})

	if c.metrics != nil {
		c.metrics.RecordTick(ctx, time.Since(start))
	}
	return result, nil
}

func (c *Coordinator) dispatchFiring(ctx context.Context, job registry.Job, firing time.Time, result *TickResult) {
	lockKey := keys.LockKey(c.config.Namespace, job.Key, firing)
	idempotencyKey := keys.IdempotencyKey(c.config.Namespace, job.Key, firing)

	acquired, err := c.acquireLease(ctx, lockKey)
	if err != nil {
		c.logger.Error("lease acquire failed",
			zap.String("job_key", job.Key), zap.Time("firing", firing), zap.Error(err))
		return
	}
	if c.metrics != nil {
		c.metrics.RecordLeaseOutcome(ctx, job.Key, acquired)
	}
	if !acquired {
		result.Denied++
		return
	}

	callbackStart := time.Now()
	callbackErr := c.invokeCallback(job, firing, idempotencyKey)
	duration := time.Since(callbackStart)

	status := audit.StatusDispatched
	if callbackErr != nil {
		status = audit.StatusFailed
		result.Failed++
		c.logger.Error("job callback failed",
			zap.String("job_key", job.Key), zap.Time("firing", firing), zap.Error(callbackErr))
	} else {
		result.Dispatched++
	}

	if c.metrics != nil {
		c.metrics.RecordDispatch(ctx, job.Key, callbackErr == nil, duration)
	}

	c.logDispatch(ctx, job.Key, firing, status)
}

// invokeCallback runs job.Callback inside a recover boundary: one job's
// panic must not take down the tick loop and every other job with it.
func (c *Coordinator) invokeCallback(job registry.Job, firing time.Time, idempotencyKey string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("job callback panicked",
				zap.String("job_key", job.Key), zap.Time("firing", firing), zap.Any("panic", r))
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return job.Callback(firing, idempotencyKey)
}

func (c *Coordinator) acquireLease(ctx context.Context, lockKey string) (bool, error) {
	if c.breakers == nil {
		return c.lease.Acquire(ctx, lockKey, c.config.LeaseTTL)
	}

	breaker := c.breakers.Get(leaseBreakerName)
	var acquired bool
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		ok, err := c.lease.Acquire(ctx, lockKey, c.config.LeaseTTL)
		acquired = ok
		return err
	})
	return acquired, err
}

// logDispatch records a dispatch outcome. A logging failure is swallowed:
// per spec.md it must never roll back or retry the callback invocation.
func (c *Coordinator) logDispatch(ctx context.Context, jobKey string, firing time.Time, status audit.Status) {
	if !c.config.EnableAudit || c.audit == nil {
		return
	}

	logFn := func(ctx context.Context) error {
		return c.audit.Log(ctx, jobKey, firing, c.nodeID, status)
	}

	var err error
	if c.breakers != nil {
		err = c.breakers.Get(auditBreakerName).Execute(ctx, logFn)
	} else {
		err = logFn(ctx)
	}
	if err != nil {
		c.logger.Warn("audit log failed",
			zap.String("job_key", jobKey), zap.Time("firing", firing), zap.Error(err))
	}
}

// runRecovery is the recovery procedure of spec.md §4.8: sleep a random
// jitter to desynchronize fleet restarts, then redispatch any firing inside
// recovery_window that the audit backend has no record of.
func (c *Coordinator) runRecovery(ctx context.Context) error {
	if c.config.RecoveryStartupJitter > 0 {
		jitter := time.Duration(rand.Int63n(int64(c.config.RecoveryStartupJitter)))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	now := c.clock.Now()
	windowStart := now.Add(-c.config.RecoveryWindow)

	redispatched := 0
	c.registry.Each(func(job registry.Job) {
		sched, err := cronexpr.Parse(job.Expression)
		if err != nil {
			c.logger.Error("invalid cron expression, skipping recovery for job",
				zap.String("job_key", job.Key), zap.Error(err))
			return
		}

		firings, err := sched.Enumerate(c.loc, windowStart, now)
		if err != nil {
			c.logger.Error("recovery enumeration failed",
				zap.String("job_key", job.Key), zap.Error(err))
			return
		}

		for _, f := range firings {
			if c.config.EnableAudit && c.audit != nil {
				dispatched, err := c.audit.Dispatched(ctx, job.Key, f)
				if err != nil {
					c.logger.Warn("recovery audit lookup failed",
						zap.String("job_key", job.Key), zap.Time("firing", f), zap.Error(err))
				} else if dispatched {
					continue
				}
			}

			var result TickResult
			c.dispatchFiring(ctx, job, f, &result)
			redispatched += result.Dispatched + result.Failed
		}
	})

	if c.metrics != nil {
		c.metrics.RecordRecoveryRun(ctx, redispatched)
	}
	c.logger.Info("recovery complete", zap.Int("redispatched", redispatched))

	if c.config.EnableAudit && c.audit != nil {
		if err := c.audit.Cleanup(ctx, c.config.RecoveryWindow); err != nil {
			return fmt.Errorf("recovery cleanup: %w", err)
		}
	}
	return nil
}

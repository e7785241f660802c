// Package engine implements the core transaction submission and
// confirmation engine: the account pool, nonce accounting, queue state
// machine, submission driver, and retry/reconciliation policy. It is
// headless — logging, configuration, and process lifecycle belong to a
// thin front-end such as cmd/txengine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Engine is the public API exposed to a thin front-end (§6): Initialize,
// AddTransaction, Tick, RetryFailed, SyncAccountNonce.
type Engine struct {
	store          *Store
	driver         *Driver
	reconciler     *Reconciler
	metrics        *Metrics
	logger         *slog.Logger
	now            func() time.Time
	gatewayAddr    string
	reconcilerOpts []ReconcilerOption
	driverOpts     []DriverOption
}

// Option customises an Engine instance.
type Option func(*Engine)

// WithLogger installs a structured logger shared by the driver and reconciler.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics overrides the default metrics registry shared by the driver
// and reconciler.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the function used to derive timestamps, for
// deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.now = clock }
}

// WithMaxRetries sets the retry cap passed through to the Reconciler.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.reconcilerOpts = append(e.reconcilerOpts, WithRetryLimit(n))
	}
}

// WithSubmissionRateLimit caps how many submissions per second the driver
// hands to the gateway, passed through to the Driver.
func WithSubmissionRateLimit(perSecond float64, burst int) Option {
	return func(e *Engine) {
		e.driverOpts = append(e.driverOpts, WithDriverRateLimit(perSecond, burst))
	}
}

// New constructs an Engine with no accounts and no gateway. Accounts must be
// added with AddAccount before AddTransaction can succeed; Initialize must
// succeed before the driver has anything to submit against.
func New(opts ...Option) *Engine {
	store := NewStore()
	e := &Engine{
		store:   store,
		metrics: NewMetrics(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.driver = NewDriver(store, append(e.driverOpts,
		WithDriverMetrics(e.metrics), WithDriverLogger(e.logger), WithDriverClock(e.now))...)
	e.reconciler = NewReconciler(store, append(e.reconcilerOpts,
		WithReconcilerMetrics(e.metrics), WithReconcilerLogger(e.logger), WithReconcilerClock(e.now))...)
	return e
}

// AddAccount registers a signing account in the pool (§3 Accounts are
// created at startup and live for the process's lifetime).
func (e *Engine) AddAccount(address string, material SigningMaterial, initialNonce uint64) {
	_ = e.store.Mutate(func(s *state) error {
		s.AddAccount(address, material, initialNonce)
		return nil
	})
}

// Initialize establishes the gateway session (§6 initialize) and reconciles
// every account's nonce against the chain before the driver is allowed to
// tick, so a concurrently running Run loop can never observe ready without
// the reconciliation having already landed (§4.6). On failure the handle
// remains absent and ErrConnectFailed is returned.
func (e *Engine) Initialize(ctx context.Context, gw Gateway, nodeURL string) error {
	if gw == nil {
		return fmt.Errorf("%w: nil gateway", ErrConnectFailed)
	}
	if err := gw.Initialize(ctx, nodeURL); err != nil {
		return fmt.Errorf("%w: %s", ErrConnectFailed, err.Error())
	}
	if err := e.reconciler.ReconcileAll(ctx, gw); err != nil {
		e.logger.Warn("post-connect reconciliation failed", slog.Any("error", err))
	}
	_ = e.store.Mutate(func(s *state) error {
		s.gateway = gw
		s.ready = true
		return nil
	})
	e.gatewayAddr = nodeURL
	return nil
}

// AddTransaction implements the public API's add_transaction(module, method,
// params). It selects an account, assigns a nonce, and enqueues a Pending
// transaction, returning its id. ErrNoAccounts is returned, with no state
// change, when the pool is empty.
func (e *Engine) AddTransaction(module, method string, params []any) (string, error) {
	var id string
	err := e.store.Mutate(func(s *state) error {
		tx, err := s.enqueue(Call{Module: module, Method: method, Params: params}, e.now(), e.driver.newID)
		if err != nil {
			return err
		}
		id = tx.id
		return nil
	})
	if err != nil {
		return "", err
	}
	e.recordQueueMetrics()
	return id, nil
}

// Tick drives one submission if possible (§6 tick()).
func (e *Engine) Tick(ctx context.Context) error {
	err := e.driver.Tick(ctx)
	e.recordQueueMetrics()
	return err
}

// Run blocks, ticking the driver on interval until ctx is cancelled. The
// process entrypoint uses this; tests typically call Tick directly.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	return e.driver.Run(ctx, interval)
}

// RetryFailed implements the public API's retry_failed().
func (e *Engine) RetryFailed() {
	e.reconciler.RetryFailed()
	e.recordQueueMetrics()
}

// RunRetryLoop blocks, calling RetryFailed on interval until ctx is
// cancelled.
func (e *Engine) RunRetryLoop(ctx context.Context, interval time.Duration) error {
	return e.reconciler.Run(ctx, interval)
}

// SyncAccountNonce implements the public API's
// sync_account_nonce(address, on_chain_nonce).
func (e *Engine) SyncAccountNonce(address string, onChainNonce uint64) {
	e.reconciler.SyncAccountNonce(address, onChainNonce)
	e.recordQueueMetrics()
}

// Snapshot returns a consistent, read-only view of accounts and queues.
func (e *Engine) Snapshot() Snapshot {
	return e.store.Read()
}

func (e *Engine) recordQueueMetrics() {
	snap := e.store.Read()
	e.metrics.SetQueueDepth("pending", len(snap.Pending))
	e.metrics.SetQueueDepth("processing", len(snap.Processing))
	e.metrics.SetQueueDepth("failed", len(snap.Failed))
	for _, acct := range snap.Accounts {
		e.metrics.SetAccountNonce(acct.Address, acct.Nonce)
	}
}

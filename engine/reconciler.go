package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/nhbchain/txengine/observability/logging"
)

// Reconciler is the Retry & Reconciler (C6): reissues failed transactions up
// to a configurable limit, and joins the engine's optimistic local nonce
// with the chain's on-chain truth.
type Reconciler struct {
	store      *Store
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
}

// ReconcilerOption customises a Reconciler instance.
type ReconcilerOption func(*Reconciler)

// WithReconcilerMetrics overrides the default metrics registry.
func WithReconcilerMetrics(m *Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// WithReconcilerLogger installs a structured logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// WithReconcilerClock overrides the function used to derive timestamps.
func WithReconcilerClock(clock func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = clock }
}

// WithRetryLimit sets the retry cap (§9 open question: exposed as
// configuration rather than hard-coded). Values <= 0 fall back to 5, the
// source's original constant.
func WithRetryLimit(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// NewReconciler constructs a Reconciler bound to store.
func NewReconciler(store *Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:      store,
		metrics:    NewMetrics(),
		logger:     slog.Default(),
		now:        time.Now,
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(r.logger, "reconciler")
	return r
}

// RetryFailed implements C6 retry_failed. For each transaction in the
// failed holding area: if retry_count < maxRetries, it increments
// retry_count, re-fetches the submitter's current assigned-nonce, overwrites
// assigned_nonce, and flips status back to Pending. Otherwise it drops the
// transaction (RetriesExhausted) and logs.
func (r *Reconciler) RetryFailed() {
	now := r.now()
	var dropped []*transaction
	_ = r.store.Mutate(func(s *state) error {
		kept := s.failed[:0]
		for _, tx := range s.failed {
			if tx.retryCount >= r.maxRetries {
				dropped = append(dropped, tx)
				continue
			}
			acct, ok := s.accounts[tx.submitterAddress]
			if !ok {
				dropped = append(dropped, tx)
				continue
			}
			tx.retryCount++
			tx.assignedNonce = s.assignNonce(acct)
			tx.status = StatusPending
			tx.updatedAt = now
			s.pending = append(s.pending, tx)
			kept = append(kept, tx)
		}
		s.failed = kept
		return nil
	})
	for _, tx := range dropped {
		logging.WithAccount(logging.WithTx(r.logger, tx.id), tx.submitterAddress).Info(
			"retries exhausted, dropping transaction",
			slog.Int("retry_count", tx.retryCount), slog.Any("error", ErrRetriesExhausted))
		r.metrics.RecordRetriesExhausted(tx.submitterAddress)
	}
}

// Run blocks, calling RetryFailed on interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.RetryFailed()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncAccountNonce implements C6 sync_nonce: the public API's
// sync_account_nonce(address, on_chain_nonce). The local nonce only ever
// moves forward (§9).
func (r *Reconciler) SyncAccountNonce(address string, onChainNonce uint64) {
	_ = r.store.Mutate(func(s *state) error {
		s.syncNonce(address, onChainNonce)
		return nil
	})
}

// ReconcileAll fetches the on-chain nonce for every known account from gw
// and folds it into the local state via SyncAccountNonce. It is the
// reconcile-on-reconnect hook described in the expanded spec: Engine.Initialize
// calls it once the gateway has connected and before marking the engine
// ready, so the driver never ticks against a nonce that has not yet been
// reconciled with the chain after a restart or reconnect.
func (r *Reconciler) ReconcileAll(ctx context.Context, gw Gateway) error {
	if gw == nil {
		return ErrNotInitialized
	}
	snap := r.store.Read()
	for _, acct := range snap.Accounts {
		onChain, err := gw.FetchNonce(ctx, acct.Address)
		if err != nil {
			logging.WithAccount(r.logger, acct.Address).Warn(
				"fetch nonce failed during reconciliation", slog.Any("error", err))
			continue
		}
		r.SyncAccountNonce(acct.Address, onChain)
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhbchain/txengine/observability/logging"
)

// Driver is the Submission Driver (C5): a single cooperative worker that
// pulls from pending, submits via the Gateway, and dispatches status
// callbacks into queue transitions. Following the teacher's Manager
// Run/Tick split (services/swapd/oracle/manager.go), it exposes both a
// single-shot Tick for externally-driven scheduling and a Run loop for
// processes that own their own ticker.
type Driver struct {
	store   *Store
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	// limiter throttles how fast the driver accepts new submissions, the
	// way the teacher throttles inbound gateway requests per client
	// (gateway/middleware/ratelimit.go), applied here to outbound node
	// traffic instead. Nil means unlimited.
	limiter *rate.Limiter

	// mu serializes Tick invocations so the "single cooperative worker"
	// model (§5) holds even if a caller accidentally drives Tick from more
	// than one goroutine.
	mu sync.Mutex
}

// DriverOption customises a Driver instance.
type DriverOption func(*Driver)

// WithDriverMetrics overrides the default metrics registry.
func WithDriverMetrics(m *Metrics) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithDriverLogger installs a structured logger.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// WithDriverClock overrides the function used to derive timestamps, for
// deterministic tests.
func WithDriverClock(clock func() time.Time) DriverOption {
	return func(d *Driver) { d.now = clock }
}

// WithDriverIDGenerator overrides transaction id generation, for tests.
func WithDriverIDGenerator(gen func() string) DriverOption {
	return func(d *Driver) { d.newID = gen }
}

// WithDriverRateLimit caps how many submissions per second the driver will
// hand to the gateway, with the given burst allowance. A limit <= 0 leaves
// submissions unthrottled.
func WithDriverRateLimit(perSecond float64, burst int) DriverOption {
	return func(d *Driver) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewDriver constructs a Driver bound to store.
func NewDriver(store *Store, opts ...DriverOption) *Driver {
	d := &Driver{
		store:   store,
		metrics: NewMetrics(),
		logger:  slog.Default(),
		now:     time.Now,
		newID:   newTransactionID,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.WithComponent(d.logger, "driver")
	return d
}

// Run blocks, calling Tick on interval until ctx is cancelled. It is the
// convenience loop a process entrypoint uses; tests and callers that already
// own a scheduler should call Tick directly instead.
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := d.Tick(ctx); err != nil {
			d.logger.Error("submission tick failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick drives one submission if possible (the public API's tick()). It
// returns nil when there is nothing to do — an absent gateway handle or an
// empty pending queue are not errors (§4.5 step 1).
func (d *Driver) Tick(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.limiter != nil && !d.limiter.Allow() {
		return nil
	}

	var (
		gw      Gateway
		tx      *transaction
		signer  SigningMaterial
		missing bool
	)
	now := d.now()
	if err := d.store.Mutate(func(s *state) error {
		if !s.ready || s.gateway == nil {
			return nil
		}
		head, ok := s.peekPendingHead()
		if !ok {
			return nil
		}
		acct, exists := s.accounts[head.submitterAddress]
		if !exists {
			// §4.5 step 3: submitter no longer present — fail and stop.
			if popped, ok := s.popPendingHead(); ok {
				s.failPending(popped, now)
			}
			missing = true
			tx = head
			return nil
		}
		tx = head
		signer = acct.SigningMaterial
		gw = s.gateway
		return nil
	}); err != nil {
		return err
	}
	if tx == nil {
		return nil
	}
	if missing {
		logging.WithAccount(logging.WithTx(d.logger, tx.id), tx.submitterAddress).
			Warn("submitter account missing, dropping transaction")
		d.metrics.RecordFailure(tx.submitterAddress, "account_missing")
		return fmt.Errorf("%w: %s", ErrAccountMissing, tx.submitterAddress)
	}

	return d.submit(ctx, gw, signer, tx)
}

func (d *Driver) submit(ctx context.Context, gw Gateway, signer SigningMaterial, tx *transaction) error {
	txLogger := logging.WithAccount(logging.WithTx(d.logger, tx.id), tx.submitterAddress)

	now := d.now()
	_ = d.store.Mutate(func(s *state) error {
		if popped, ok := s.popPendingHead(); ok {
			s.markSubmitted(popped, now, nil)
		}
		return nil
	})

	onEvent := func(e Event) {
		now := d.now()
		var transitioned Status
		_ = d.store.Mutate(func(s *state) error {
			switch {
			case e.ExtrinsicFailed:
				s.setStatus(tx.id, StatusFailed, now)
				transitioned = StatusFailed
			case e.Kind == EventFinalized:
				s.setStatus(tx.id, StatusConfirmed, now)
				transitioned = StatusConfirmed
			}
			return nil
		})
		switch transitioned {
		case StatusFailed:
			txLogger.Info("transaction failed on-chain", slog.Any("error", ErrExtrinsicFailed))
			d.metrics.RecordFailure(tx.submitterAddress, "extrinsic_failed")
		case StatusConfirmed:
			txLogger.Info("transaction confirmed")
			d.metrics.RecordConfirmation(tx.submitterAddress, d.now().Sub(tx.createdAt))
		}
	}

	unsubscribe, err := gw.Submit(ctx, tx.call, signer, tx.assignedNonce, onEvent)
	now = d.now()
	if err != nil {
		// §4.5 step 6: rollback only applies pre-acceptance; ExtrinsicFailed
		// arrives later via onEvent and is handled above without rollback.
		// The transaction may already have reached a terminal state via a
		// same-goroutine synchronous callback; failProcessing is a no-op then.
		_ = d.store.Mutate(func(s *state) error {
			s.failProcessing(tx.id, now)
			s.rollbackNonce(tx.submitterAddress)
			return nil
		})
		txLogger.Warn("submit rejected, nonce rolled back", slog.Any("error", err))
		d.metrics.RecordFailure(tx.submitterAddress, "submit_rejected")
		return fmt.Errorf("%w: %s", ErrSubmitRejected, err.Error())
	}

	_ = d.store.Mutate(func(s *state) error {
		s.setUnsubscribe(tx.id, unsubscribe)
		return nil
	})
	d.metrics.RecordSubmission(tx.submitterAddress)
	return nil
}

package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhbchain/txengine/engine"
)

// TestRetryCapDropsAfterMaxRetries covers S5: a transaction that keeps
// failing is retried up to the configured cap, then dropped for good.
func TestRetryCapDropsAfterMaxRetries(t *testing.T) {
	gw := &scriptedGateway{
		onSubmit: func(sc submitCall) (func(), error) {
			return nil, errWantRejected
		},
	}
	eng := engine.New(engine.WithMaxRetries(2))
	eng.AddAccount("A", fakeSigner{"A"}, 0)
	mustInitialize(t, eng, gw)

	_, err := eng.AddTransaction("m", "f", nil)
	require.NoError(t, err)

	// First submit fails pre-acceptance, landing in the failed holding area.
	require.ErrorIs(t, eng.Tick(context.Background()), engine.ErrSubmitRejected)
	require.Len(t, eng.Snapshot().Failed, 1)

	// Retry #1: reset to Pending, fail again.
	eng.RetryFailed()
	require.Len(t, eng.Snapshot().Pending, 1)
	require.ErrorIs(t, eng.Tick(context.Background()), engine.ErrSubmitRejected)
	require.Equal(t, 1, eng.Snapshot().Failed[0].RetryCount)

	// Retry #2: reset to Pending, fail again — now at the cap.
	eng.RetryFailed()
	require.ErrorIs(t, eng.Tick(context.Background()), engine.ErrSubmitRejected)
	require.Equal(t, 2, eng.Snapshot().Failed[0].RetryCount)

	// Retry #3 attempt: retry_count (2) >= max_retries (2) — dropped instead
	// of being reset to Pending.
	eng.RetryFailed()
	snap := eng.Snapshot()
	require.Empty(t, snap.Pending)
	require.Empty(t, snap.Failed)
}

// TestSyncAccountNonceRoundTrips covers S6: sync moves the nonce forward and
// never backward.
func TestSyncAccountNonceRoundTrips(t *testing.T) {
	eng := engine.New()
	eng.AddAccount("A", fakeSigner{"A"}, 3)

	eng.SyncAccountNonce("A", 7)
	acct, ok := eng.Snapshot().FindAccount("A")
	require.True(t, ok)
	require.Equal(t, uint64(7), acct.Nonce)

	eng.SyncAccountNonce("A", 4)
	acct, _ = eng.Snapshot().FindAccount("A")
	require.Equal(t, uint64(7), acct.Nonce)
}

// TestReconcileAllWarnsButDoesNotFailOnPartialFetchError ensures one
// account's FetchNonce failure does not block reconciling the others.
func TestReconcileAllWarnsButDoesNotFailOnPartialFetchError(t *testing.T) {
	gw := &scriptedGateway{nonces: map[string]uint64{"A": 10}}
	eng := engine.New()
	eng.AddAccount("A", fakeSigner{"A"}, 0)
	eng.AddAccount("B", fakeSigner{"B"}, 0) // no entry in gw.nonces: FetchNonce errors

	require.NoError(t, eng.Initialize(context.Background(), gw, "ws://fake"))

	snap := eng.Snapshot()
	a, _ := snap.FindAccount("A")
	b, _ := snap.FindAccount("B")
	require.Equal(t, uint64(10), a.Nonce)
	require.Equal(t, uint64(0), b.Nonce)
}

var errWantRejected = errRejected{}

type errRejected struct{}

func (errRejected) Error() string { return "rejected" }

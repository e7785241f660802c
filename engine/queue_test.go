package engine

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func idSeq(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func TestEnqueueAssignsAccountAndNonce(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 10)
	now := time.Now()

	tx, err := s.enqueue(Call{Module: "balances", Method: "transfer"}, now, idSeq("tx"))
	require.NoError(t, err)
	require.Equal(t, "A", tx.submitterAddress)
	require.Equal(t, uint64(10), tx.assignedNonce)
	require.Equal(t, StatusPending, tx.status)
	require.Len(t, s.pending, 1)
}

func TestEnqueueNoAccountsFails(t *testing.T) {
	s := newState()
	_, err := s.enqueue(Call{Module: "balances", Method: "transfer"}, time.Now(), idSeq("tx"))
	require.ErrorIs(t, err, ErrNoAccounts)
	require.Empty(t, s.pending)
}

func TestMarkSubmittedMovesPendingToProcessing(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)

	popped, ok := s.popPendingHead()
	require.True(t, ok)
	require.Same(t, tx, popped)

	var unsubscribed bool
	s.markSubmitted(popped, time.Now(), func() { unsubscribed = true })

	require.Empty(t, s.pending)
	require.Contains(t, s.processing, tx.id)
	require.Equal(t, StatusSubmitted, tx.status)
	require.False(t, unsubscribed)
}

func TestFailPendingMovesToHoldingArea(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)

	s.failPending(tx, time.Now())
	require.Empty(t, s.pending)
	require.Len(t, s.failed, 1)
	require.Equal(t, StatusFailed, tx.status)
}

func TestSetStatusConfirmedRemovesFromProcessingAndUnsubscribes(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)
	popped, _ := s.popPendingHead()

	var unsubscribed bool
	s.markSubmitted(popped, time.Now(), func() { unsubscribed = true })

	s.setStatus(tx.id, StatusConfirmed, time.Now())
	require.NotContains(t, s.processing, tx.id)
	require.Empty(t, s.failed)
	require.True(t, unsubscribed)
	require.Equal(t, StatusConfirmed, tx.status)
}

func TestSetStatusFailedMovesToHoldingAreaAndUnsubscribes(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)
	popped, _ := s.popPendingHead()

	var unsubscribed bool
	s.markSubmitted(popped, time.Now(), func() { unsubscribed = true })

	s.setStatus(tx.id, StatusFailed, time.Now())
	require.NotContains(t, s.processing, tx.id)
	require.Len(t, s.failed, 1)
	require.True(t, unsubscribed)
}

func TestSetStatusUnknownIDIsNoop(t *testing.T) {
	s := newState()
	require.NotPanics(t, func() { s.setStatus("ghost", StatusConfirmed, time.Now()) })
}

func TestSetUnsubscribeRecordsHandleForLiveProcessingEntry(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)
	popped, _ := s.popPendingHead()
	s.markSubmitted(popped, time.Now(), nil)

	var called bool
	s.setUnsubscribe(tx.id, func() { called = true })
	require.Equal(t, tx, s.processing[tx.id])

	s.setStatus(tx.id, StatusConfirmed, time.Now())
	require.True(t, called)
}

func TestSetUnsubscribeIsNoopForUnknownID(t *testing.T) {
	s := newState()
	require.NotPanics(t, func() { s.setUnsubscribe("ghost", func() {}) })
}

func TestFailProcessingMovesToHoldingArea(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)
	popped, _ := s.popPendingHead()
	s.markSubmitted(popped, time.Now(), nil)

	s.failProcessing(tx.id, time.Now())
	require.NotContains(t, s.processing, tx.id)
	require.Len(t, s.failed, 1)
	require.Equal(t, StatusFailed, tx.status)
}

func TestFailProcessingIsNoopForUnknownID(t *testing.T) {
	s := newState()
	require.NotPanics(t, func() { s.failProcessing("ghost", time.Now()) })
}

func TestFindLiveTransactionFindsPendingAndMissesUnknownID(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	tx, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
	require.NoError(t, err)

	found, ok := s.findLiveTransaction(tx.id)
	require.True(t, ok)
	require.Same(t, tx, found)

	_, ok = s.findLiveTransaction("ghost")
	require.False(t, ok)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSigner struct{ addr string }

func (s stubSigner) Address() string { return s.addr }

func TestPickNextRoundRobinsWithWraparound(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	s.AddAccount("B", stubSigner{"B"}, 0)
	s.AddAccount("C", stubSigner{"C"}, 0)

	var order []string
	for i := 0; i < 6; i++ {
		acct, err := s.pickNext()
		require.NoError(t, err)
		order = append(order, acct.Address)
	}
	require.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, order)
}

func TestPickNextNoAccounts(t *testing.T) {
	s := newState()
	_, err := s.pickNext()
	require.ErrorIs(t, err, ErrNoAccounts)
}

func TestAssignNonceIncrementsOptimistically(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 5)
	acct := s.accounts["A"]

	n0 := s.assignNonce(acct)
	n1 := s.assignNonce(acct)
	require.Equal(t, uint64(5), n0)
	require.Equal(t, uint64(6), n1)
	require.Equal(t, uint64(7), acct.Nonce)
}

func TestRollbackNonceUndoesOneAssignment(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 5)
	acct := s.accounts["A"]
	s.assignNonce(acct)

	s.rollbackNonce("A")
	require.Equal(t, uint64(5), acct.Nonce)
}

func TestRollbackNonceFloorsAtZero(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 0)
	s.rollbackNonce("A")
	require.Equal(t, uint64(0), s.accounts["A"].Nonce)
}

func TestRollbackNonceMissingAccountIsNoop(t *testing.T) {
	s := newState()
	require.NotPanics(t, func() { s.rollbackNonce("ghost") })
}

func TestSyncNonceOnlyMovesForward(t *testing.T) {
	s := newState()
	s.AddAccount("A", stubSigner{"A"}, 3)

	s.syncNonce("A", 7)
	require.Equal(t, uint64(7), s.accounts["A"].Nonce)

	s.syncNonce("A", 4)
	require.Equal(t, uint64(7), s.accounts["A"].Nonce, "sync must never decrease the local nonce")
}

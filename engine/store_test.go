package engine

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreReadReflectsLastMutate(t *testing.T) {
	store := NewStore()
	err := store.Mutate(func(s *state) error {
		s.AddAccount("A", stubSigner{"A"}, 3)
		_, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), idSeq("tx"))
		return err
	})
	require.NoError(t, err)

	snap := store.Read()
	require.False(t, snap.Ready)
	require.Len(t, snap.Pending, 1)
	acct, ok := snap.FindAccount("A")
	require.True(t, ok)
	require.Equal(t, uint64(4), acct.Nonce)
}

func TestStoreMutateSerializesConcurrentWriters(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Mutate(func(s *state) error {
		s.AddAccount("A", stubSigner{"A"}, 0)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Mutate(func(s *state) error {
				_, err := s.enqueue(Call{Module: "m", Method: "f"}, time.Now(), func() string {
					return "tx-" + strconv.Itoa(i)
				})
				return err
			})
		}()
	}
	wg.Wait()

	snap := store.Read()
	require.Len(t, snap.Pending, 50)
	acct, _ := snap.FindAccount("A")
	require.Equal(t, uint64(50), acct.Nonce)
}

package engine

import "sync"

// state is the mutable draft the Store guards. It is never handed to a
// caller directly — Read() projects it into a Snapshot, and Mutate(f) is the
// only way to change it. This realizes the spec's "mutable draft" pattern as
// a mutex over a plain record (§9), the option the teacher itself reaches
// for (services/payoutd/processor.go's mutex-guarded processed map) rather
// than a structural-sharing library.
type state struct {
	ready     bool
	gateway   Gateway
	accounts  map[string]*Account
	order     []string // account address insertion order, for round-robin
	nextIndex int

	pending    []*transaction          // FIFO, head is index 0
	processing map[string]*transaction // keyed by transaction id
	failed     []*transaction          // holding area awaiting retry_failed; see queue.go
}

func newState() *state {
	return &state{
		accounts:   make(map[string]*Account),
		processing: make(map[string]*transaction),
	}
}

// AccountSnapshot is the read-only view of an Account handed out by Store.Read.
type AccountSnapshot struct {
	Address string
	Nonce   uint64
}

// Snapshot is an immutable, consistent view of the engine's global state at
// one instant. Every field reflects the same Mutate call (or none yet).
type Snapshot struct {
	Ready      bool
	Accounts   []AccountSnapshot
	Pending    []Transaction
	Processing []Transaction
	// Failed holds transactions awaiting retry_failed — not part of the
	// spec's two formal queues, but tracked so Retry & Reconciler and
	// observability can see them (see queue.go for why they live here).
	Failed []Transaction
}

// FindAccount returns the account with the given address, if present.
func (s Snapshot) FindAccount(address string) (AccountSnapshot, bool) {
	for _, a := range s.Accounts {
		if a.Address == address {
			return a, true
		}
	}
	return AccountSnapshot{}, false
}

// Store is the single serializer for all state mutations (C2). Every
// observer of engine state goes through Read or Mutate; there is no other
// path to the data.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore constructs an empty Store with no gateway and no accounts.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Read returns a consistent snapshot of accounts and queues. All fields in
// the returned value were produced by the same critical section.
func (s *Store) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Ready:      s.st.ready,
		Accounts:   make([]AccountSnapshot, 0, len(s.st.order)),
		Pending:    make([]Transaction, 0, len(s.st.pending)),
		Processing: make([]Transaction, 0, len(s.st.processing)),
		Failed:     make([]Transaction, 0, len(s.st.failed)),
	}
	for _, addr := range s.st.order {
		acct := s.st.accounts[addr]
		snap.Accounts = append(snap.Accounts, AccountSnapshot{Address: acct.Address, Nonce: acct.Nonce})
	}
	for _, tx := range s.st.pending {
		snap.Pending = append(snap.Pending, tx.view())
	}
	for _, tx := range s.st.processing {
		snap.Processing = append(snap.Processing, tx.view())
	}
	for _, tx := range s.st.failed {
		snap.Failed = append(snap.Failed, tx.view())
	}
	return snap
}

// Mutate applies f atomically over the shared draft and returns its error.
// All writes f makes become visible together to any subsequent Read.
func (s *Store) Mutate(f func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.st)
}


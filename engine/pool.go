package engine

// AddAccount registers a signing account for the lifetime of the process.
// Accounts are created at startup (§3 Ownership & lifecycle); calling this
// after submissions are in flight is safe but not a supported workflow.
func (s *state) AddAccount(address string, material SigningMaterial, initialNonce uint64) {
	if _, exists := s.accounts[address]; exists {
		return
	}
	s.accounts[address] = &Account{Address: address, SigningMaterial: material, Nonce: initialNonce}
	s.order = append(s.order, address)
}

// pickNext returns the account at the round-robin cursor and advances the
// cursor with wrap-around (C3 pick_next). The cursor persists across calls
// as part of the shared state.
func (s *state) pickNext() (*Account, error) {
	if len(s.order) == 0 {
		return nil, ErrNoAccounts
	}
	idx := s.nextIndex % len(s.order)
	s.nextIndex = (s.nextIndex + 1) % len(s.order)
	return s.accounts[s.order[idx]], nil
}

// assignNonce assigns account's current nonce and optimistically increments
// it by one (C3 assign_nonce). Must be called inside the same Mutate that
// appends the resulting transaction, so back-to-back enqueues on one account
// never observe a stale nonce.
func (s *state) assignNonce(account *Account) uint64 {
	n := account.Nonce
	account.Nonce++
	return n
}

// rollbackNonce decrements address's nonce by one, undoing an optimistic
// assignment that never reached the chain (§4.5 step 6). It is a no-op if
// the account no longer exists.
func (s *state) rollbackNonce(address string) {
	acct, ok := s.accounts[address]
	if !ok {
		return
	}
	if acct.Nonce > 0 {
		acct.Nonce--
	}
}

// syncNonce implements C6 sync_nonce: the local counter only ever moves
// forward to the on-chain truth, never back (§9 Optimistic nonce vs
// on-chain truth).
func (s *state) syncNonce(address string, onChainNonce uint64) {
	acct, ok := s.accounts[address]
	if !ok {
		return
	}
	if onChainNonce > acct.Nonce {
		acct.Nonce = onChainNonce
	}
}

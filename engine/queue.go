package engine

import "time"

// failed holding area: transactions that reached StatusFailed are not
// terminal the way Confirmed is — §4.6 retry_failed still needs to find
// them — so they live in neither pending nor processing until retry_failed
// either resets them to Pending or drops them for good. This satisfies
// invariant 2 (pending XOR processing XOR neither) literally: a Failed
// transaction awaiting retry is the "neither" case.
func (s *state) enqueue(call Call, now time.Time, newID func() string) (*transaction, error) {
	acct, err := s.pickNext()
	if err != nil {
		return nil, err
	}
	nonce := s.assignNonce(acct)
	tx := &transaction{
		id:               newID(),
		submitterAddress: acct.Address,
		call:             call,
		assignedNonce:    nonce,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
	}
	s.pending = append(s.pending, tx)
	return tx, nil
}

// peekPendingHead returns the oldest pending transaction without removing
// it. FIFO order here is what makes the optimistic nonce sequence valid
// (§4.5 step 2).
func (s *state) peekPendingHead() (*transaction, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	return s.pending[0], true
}

// popPendingHead removes and returns the oldest pending transaction.
func (s *state) popPendingHead() (*transaction, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	tx := s.pending[0]
	s.pending = s.pending[1:]
	return tx, true
}

// markSubmitted moves tx from pending to processing, recording the
// gateway's subscription cancel func (§4.5 step 5, §9 unsubscribe tracking).
// unsubscribe may be nil when the gateway handle isn't known yet — the
// driver calls Gateway.Submit only after this move, precisely so that any
// event the gateway's read loop delivers, however quickly, always finds the
// transaction already in processing rather than racing setStatus against a
// later move out of pending.
func (s *state) markSubmitted(tx *transaction, now time.Time, unsubscribe func()) {
	tx.status = StatusSubmitted
	tx.unsubscribe = unsubscribe
	tx.updatedAt = now
	s.processing[tx.id] = tx
}

// setUnsubscribe records the gateway's subscription cancel func for a
// transaction already moved into processing. A missing id is a no-op — the
// transaction already reached a terminal state before the submit call
// returned, and setStatus already released whatever handle it needed to.
func (s *state) setUnsubscribe(id string, unsubscribe func()) {
	tx, ok := s.processing[id]
	if !ok {
		return
	}
	tx.unsubscribe = unsubscribe
}

// failProcessing moves a transaction out of processing into the failed
// holding area, for a submit call that was rejected after the transaction
// was optimistically marked Submitted. Unknown id is a no-op.
func (s *state) failProcessing(id string, now time.Time) {
	tx, ok := s.processing[id]
	if !ok {
		return
	}
	delete(s.processing, id)
	tx.status = StatusFailed
	tx.updatedAt = now
	s.failed = append(s.failed, tx)
}

// failPending drops a pending transaction that never reached the gateway
// (its submitter account is missing) and appends it to the failed holding
// area.
func (s *state) failPending(tx *transaction, now time.Time) {
	idx := -1
	for i, p := range s.pending {
		if p == tx {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	}
	tx.status = StatusFailed
	tx.updatedAt = now
	s.failed = append(s.failed, tx)
}

// setStatus implements C4 set_status for a transaction currently in
// processing: Confirmed removes it (terminal); Failed moves it to the
// failed holding area pending retry. Unknown id is a no-op.
func (s *state) setStatus(id string, status Status, now time.Time) {
	tx, ok := s.processing[id]
	if !ok {
		return
	}
	delete(s.processing, id)
	if tx.unsubscribe != nil {
		tx.unsubscribe()
		tx.unsubscribe = nil
	}
	tx.status = status
	tx.updatedAt = now
	if status == StatusFailed {
		s.failed = append(s.failed, tx)
	}
	// StatusConfirmed: already removed from processing above, nothing more to do.
}

// findLiveTransaction looks up a transaction by id across pending,
// processing, and the failed holding area, for diagnostics and tests.
func (s *state) findLiveTransaction(id string) (*transaction, bool) {
	for _, tx := range s.pending {
		if tx.id == id {
			return tx, true
		}
	}
	if tx, ok := s.processing[id]; ok {
		return tx, true
	}
	for _, tx := range s.failed {
		if tx.id == id {
			return tx, true
		}
	}
	return nil, false
}

package engine

import "time"

// Status is the lifecycle stage of a Transaction.
type Status int

const (
	// StatusPending means the transaction has not yet been submitted to the gateway.
	StatusPending Status = iota
	// StatusSubmitted means the gateway accepted the extrinsic for gossip.
	StatusSubmitted
	// StatusConfirmed means the extrinsic finalized without an ExtrinsicFailed event.
	StatusConfirmed
	// StatusFailed means the transaction was rejected locally or failed on-chain.
	StatusFailed
)

// String renders the status for logging and test assertions.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Call is the logical (module, method, params) triple a caller wants dispatched.
type Call struct {
	Module string
	Method string
	Params []any
}

// Account is a signing account managed by the pool. Nonce is the next value
// this engine will assign; it is monotonically non-decreasing except for the
// pre-submission rollback described in the submission driver.
type Account struct {
	Address         string
	SigningMaterial SigningMaterial
	Nonce           uint64
}

// transaction is the internal, mutable record held by the store. It carries
// the gateway subscription cancel func, which must never leak into a
// read-only snapshot handed to a caller.
type transaction struct {
	id               string
	submitterAddress string
	call             Call
	assignedNonce    uint64
	status           Status
	retryCount       int
	createdAt        time.Time
	updatedAt        time.Time
	unsubscribe      func()
}

// Transaction is the immutable, exported view of a transaction returned by
// Store snapshots and the public API. It deliberately has no way to reach
// the live subscription handle.
type Transaction struct {
	ID               string
	SubmitterAddress string
	Call             Call
	AssignedNonce    uint64
	Status           Status
	RetryCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t *transaction) view() Transaction {
	return Transaction{
		ID:               t.id,
		SubmitterAddress: t.submitterAddress,
		Call:             t.call,
		AssignedNonce:    t.assignedNonce,
		Status:           t.status,
		RetryCount:       t.retryCount,
		CreatedAt:        t.createdAt,
		UpdatedAt:        t.updatedAt,
	}
}

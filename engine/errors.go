package engine

import "errors"

// Error kinds surfaced by the engine and its collaborators. All are recovered
// locally; none are fatal to the process.
var (
	// ErrNoAccounts is returned by AddTransaction when the account pool is empty.
	ErrNoAccounts = errors.New("txengine: no accounts configured")
	// ErrConnectFailed is returned by Initialize when the gateway could not be reached.
	ErrConnectFailed = errors.New("txengine: gateway connect failed")
	// ErrSubmitRejected is returned when the node or transport refused the extrinsic
	// before it left the local process. The submitter's nonce is rolled back.
	ErrSubmitRejected = errors.New("txengine: submit rejected")
	// ErrExtrinsicFailed indicates the node accepted the extrinsic but it failed
	// on-chain. The nonce is not rolled back; it was consumed.
	ErrExtrinsicFailed = errors.New("txengine: extrinsic failed on-chain")
	// ErrAccountMissing is returned when a transaction's submitter account no
	// longer exists in the pool.
	ErrAccountMissing = errors.New("txengine: submitter account missing")
	// ErrRetriesExhausted indicates retry_count reached the configured maximum.
	ErrRetriesExhausted = errors.New("txengine: retries exhausted")
	// ErrNotInitialized is returned when an operation requiring a live gateway
	// handle is attempted before Initialize succeeds.
	ErrNotInitialized = errors.New("txengine: gateway not initialized")
)

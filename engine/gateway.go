package engine

import "context"

// SigningMaterial is the opaque handle an Account carries; the engine never
// inspects it directly, only passes it through to the Gateway.
type SigningMaterial interface {
	// Address returns the chain address this material signs for, used only
	// for logging and validation — never for deriving signatures locally.
	Address() string
}

// EventKind enumerates the lifecycle stages a Gateway reports for a submitted
// extrinsic.
type EventKind int

const (
	// EventInBlock reports the extrinsic was included in some (non-final) block.
	EventInBlock EventKind = iota
	// EventFinalized reports the extrinsic was included in a finalized block.
	EventFinalized
)

// Event is a single lifecycle callback delivered for an in-flight submission.
type Event struct {
	Kind EventKind
	// ExtrinsicFailed is true when the block carried a system.ExtrinsicFailed
	// event targeting this extrinsic. Only meaningful once Kind reaches
	// EventInBlock or EventFinalized.
	ExtrinsicFailed bool
}

// Gateway is the Chain Gateway contract (C1): the engine's only collaborator
// for talking to the remote node. gateway/substrate implements this over a
// JSON-RPC/WebSocket session; tests use an in-memory fake.
type Gateway interface {
	// Initialize establishes the persistent session. Callers should wrap
	// failures in ErrConnectFailed.
	Initialize(ctx context.Context, nodeURL string) error

	// Submit builds, signs, and dispatches an extrinsic for call at nonce,
	// using signer. onEvent is invoked for every lifecycle update until a
	// terminal one arrives or the returned unsubscribe func is called.
	// Submit returns once the node has accepted the extrinsic for gossip.
	// Any error it returns is treated as a failure before that point: the
	// driver wraps it in ErrSubmitRejected and rolls the nonce back.
	Submit(ctx context.Context, call Call, signer SigningMaterial, nonce uint64, onEvent func(Event)) (unsubscribe func(), err error)

	// FetchNonce queries the chain for address's current on-chain nonce.
	FetchNonce(ctx context.Context, address string) (uint64, error)
}

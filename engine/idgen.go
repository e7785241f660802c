package engine

import "github.com/google/uuid"

// newTransactionID generates a unique transaction id. Following the
// teacher's use of google/uuid for request/idempotency identifiers in its
// gateway services (services/payments-gateway/server.go,
// services/otc-gateway/server/partners.go), callers never have to coordinate
// id uniqueness themselves.
func newTransactionID() string {
	return uuid.NewString()
}

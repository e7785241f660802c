// Package signer provides a concrete, in-process implementation of the
// engine's opaque signing primitive (§6 Signing primitive (consumed)),
// backed by secp256k1 — the curve the teacher's own crypto package signs
// with (nhbchain/crypto/keys.go, via go-ethereum's crypto.S256()). This
// package uses the ecosystem's standalone secp256k1 implementation
// directly so the engine can be exercised without pulling in a full EVM
// crypto stack for a concern this spec treats as an external collaborator.
package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer is a secp256k1 keypair bound to a chain address. It implements
// engine.SigningMaterial (Address() string) and additionally exposes Sign
// for gateway adapters that need to produce a real signature over an
// extrinsic payload.
type Signer struct {
	address string
	priv    *secp256k1.PrivateKey
}

// New wraps an existing private key for address.
func New(address string, priv *secp256k1.PrivateKey) *Signer {
	return &Signer{address: address, priv: priv}
}

// Generate creates a fresh keypair for address, for local testing and
// development fixtures.
func Generate(address string) (*Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return New(address, priv), nil
}

// FromHex decodes a 32-byte hex-encoded private key, as read from
// AccountConfig.SigningKeyHex.
func FromHex(address, hexKey string) (*Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return New(address, priv), nil
}

// Address returns the chain address this signer signs for, satisfying
// engine.SigningMaterial.
func (s *Signer) Address() string {
	if s == nil {
		return ""
	}
	return s.address
}

// Sign produces a deterministic ECDSA signature over payload at nonce. The
// nonce is folded into the signed digest so that two calls with identical
// payload but different nonce never collide, matching the signing
// primitive's (payload, nonce) contract (§6).
func (s *Signer) Sign(payload []byte, nonce uint64) ([]byte, error) {
	if s == nil || s.priv == nil {
		return nil, fmt.Errorf("signer: key not configured")
	}
	digest := sha256.New()
	digest.Write(payload)
	digest.Write(encodeNonce(nonce))
	sig := ecdsa.Sign(s.priv, digest.Sum(nil))
	return sig.Serialize(), nil
}

// PublicKeyBytes returns the compressed public key, for constructing
// extrinsic sender fields.
func (s *Signer) PublicKeyBytes() []byte {
	if s == nil || s.priv == nil {
		return nil
	}
	return s.priv.PubKey().SerializeCompressed()
}

func encodeNonce(nonce uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(nonce >> (8 * (7 - i)))
	}
	return buf
}

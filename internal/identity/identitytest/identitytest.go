// Package identitytest provides throwaway signing keys for tests.
package identitytest

import (
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/erazemk/najdeno/internal/identity"
)

// Signer holds a freshly generated secp256k1 key.
type Signer struct {
	key *ecdsa.PrivateKey
	ID  identity.Identity
}

// NewSigner generates a new key or fails the test.
func NewSigner(t testing.TB) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return &Signer{key: key, ID: identity.Identity(crypto.PubkeyToAddress(key.PublicKey))}
}

// Sign returns a wallet-style signature (v = 27/28) over message.
func (s *Signer) Sign(t testing.TB, message string) []byte {
	t.Helper()
	sig, err := crypto.Sign(identity.TextHash(message), s.key)
	if err != nil {
		t.Fatalf("signing message: %v", err)
	}
	sig[64] += 27
	return sig
}

// SignHex is Sign encoded as 0x-prefixed hex.
func (s *Signer) SignHex(t testing.TB, message string) string {
	t.Helper()
	return "0x" + hex.EncodeToString(s.Sign(t, message))
}

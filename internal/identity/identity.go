// Package identity recovers and compares the Ethereum-style addresses that
// callers sign requests with.
package identity

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidSignature is returned when a signature is malformed or does not
// prove the claimed identity.
var ErrInvalidSignature = errors.New("invalid signature")

// SignatureLength is the length of a recoverable secp256k1 signature (r || s || v).
const SignatureLength = 65

// Identity is a 20-byte account address. Two identities are equal iff their
// bytes are equal, so comparison is independent of hex letter case.
type Identity common.Address

// Zero is the unset identity.
var Zero Identity

// Parse parses a hex address with or without the 0x prefix, in any case.
func Parse(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Zero, fmt.Errorf("invalid address %q", s)
	}
	return Identity(common.HexToAddress(s)), nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical form: lowercase hex with the 0x prefix.
func (id Identity) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Hex returns the EIP-55 mixed-case checksum form for display.
func (id Identity) Hex() string {
	return common.Address(id).Hex()
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer. Identities are stored in canonical form.
func (id Identity) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner.
func (id *Identity) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into identity", src)
	}
}

// DecodeSignature decodes a hex signature with or without the 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding hex: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}

// TextHash returns the EIP-191 personal-sign digest of message.
func TextHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))))
	h.Write([]byte(message))
	return h.Sum(nil)
}

// Recover returns the identity that produced signature over message using
// personal-sign semantics. It never panics on malformed input.
func Recover(message string, signature []byte) (Identity, error) {
	if len(signature) != SignatureLength {
		return Zero, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)

	// Wallets emit v as 27/28; recovery expects 0/1.
	switch sig[64] {
	case 0, 1:
	case 27, 28:
		sig[64] -= 27
	default:
		return Zero, fmt.Errorf("%w: unsupported recovery id %d", ErrInvalidSignature, signature[64])
	}

	pub, err := crypto.SigToPub(TextHash(message), sig)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Identity(crypto.PubkeyToAddress(*pub)), nil
}

// Verify decodes a hex signature and recovers its signer. If claimed is
// non-empty it must name the same identity as the recovered signer.
func Verify(message, signature, claimed string) (Identity, error) {
	if message == "" || signature == "" {
		return Zero, fmt.Errorf("%w: message and signature required", ErrInvalidSignature)
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return Zero, err
	}

	id, err := Recover(message, sig)
	if err != nil {
		return Zero, err
	}

	if claimed != "" {
		want, err := Parse(claimed)
		if err != nil {
			return Zero, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if want != id {
			return Zero, fmt.Errorf("%w: signer does not match claimed address", ErrInvalidSignature)
		}
	}

	return id, nil
}

// Package auth issues and validates transfer confirmation tokens. A token
// is the out-of-band signal that ownership of an item moved to a
// claimant; presenting it finalizes the claim.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/najdeno/internal/identity"
)

// ErrInvalidToken is wrapped by every validation failure.
var ErrInvalidToken = errors.New("invalid confirmation token")

// Claims represents the JWT claims of a confirmation token.
type Claims struct {
	ItemID string `json:"item_id"`
	Owner  string `json:"owner"`
	TxHash string `json:"tx_hash,omitempty"`
	jwt.RegisteredClaims
}

// Confirmation is a validated token.
type Confirmation struct {
	ItemID    string
	Owner     identity.Identity
	TxHash    string
	JTI       string
	ExpiresAt time.Time
}

// TokenExpiry is the default token lifetime.
const TokenExpiry = 24 * time.Hour

// GenerateToken creates a confirmation token for the transfer of itemID to
// owner, with a unique JTI. A non-positive ttl uses TokenExpiry.
func GenerateToken(secret, itemID string, owner identity.Identity, txHash string, ttl time.Duration) (string, error) {
	if itemID == "" || owner.IsZero() {
		return "", fmt.Errorf("generating token: item and owner are required")
	}
	if ttl <= 0 {
		ttl = TokenExpiry
	}

	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	now := time.Now()
	claims := Claims{
		ItemID: itemID,
		Owner:  owner.String(),
		TxHash: txHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   itemID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a confirmation token.
func ValidateToken(secret, tokenStr string) (*Confirmation, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.ItemID == "" {
		return nil, fmt.Errorf("%w: missing jti or item_id", ErrInvalidToken)
	}
	owner, err := identity.Parse(claims.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ErrInvalidToken, err)
	}

	return &Confirmation{
		ItemID:    claims.ItemID,
		Owner:     owner,
		TxHash:    claims.TxHash,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/najdeno/internal/identity"
)

var owner = identity.MustParse("0xa000000000000000000000000000000000000002")

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, "item-1", owner, "0xabc", 0)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	c, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if c.ItemID != "item-1" {
		t.Errorf("expected item-1, got %q", c.ItemID)
	}
	if c.Owner != owner {
		t.Errorf("expected owner %s, got %s", owner, c.Owner)
	}
	if c.TxHash != "0xabc" {
		t.Errorf("expected tx hash 0xabc, got %q", c.TxHash)
	}
	if len(c.JTI) != 32 {
		t.Errorf("expected 32 char jti, got %q", c.JTI)
	}
}

func TestTokensHaveUniqueJTI(t *testing.T) {
	a, _ := GenerateToken("s", "item-1", owner, "", 0)
	b, _ := GenerateToken("s", "item-1", owner, "", 0)
	ca, _ := ValidateToken("s", a)
	cb, _ := ValidateToken("s", b)
	if ca.JTI == cb.JTI {
		t.Error("expected distinct JTIs")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", "item-1", owner, "", 0)

	_, err := ValidateToken("secret2", token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	claims := Claims{
		ItemID: "item-1",
		Owner:  owner.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateToken("s", token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}

func TestValidateTokenBadOwner(t *testing.T) {
	claims := Claims{
		ItemID: "item-1",
		Owner:  "bob",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))

	if _, err := ValidateToken("s", token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected bad owner to be rejected, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := "test"
	token, _ := GenerateToken(secret, "item-1", owner, "", time.Hour)
	c, _ := ValidateToken(secret, token)

	diff := time.Now().Add(time.Hour).Sub(c.ExpiresAt)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestGenerateTokenRequiresOwner(t *testing.T) {
	if _, err := GenerateToken("s", "item-1", identity.Zero, "", 0); err == nil {
		t.Error("expected error for zero owner")
	}
}

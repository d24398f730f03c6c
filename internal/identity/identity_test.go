package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/identity/identitytest"
)

func TestRecover(t *testing.T) {
	signer := identitytest.NewSigner(t)

	t.Run("Recovers wallet-style signature", func(t *testing.T) {
		got, err := identity.Recover("hello najdeno", signer.Sign(t, "hello najdeno"))
		require.NoError(t, err)
		assert.Equal(t, signer.ID, got)
	})

	t.Run("Recovers zero-based recovery id", func(t *testing.T) {
		sig := signer.Sign(t, "msg")
		sig[64] -= 27
		got, err := identity.Recover("msg", sig)
		require.NoError(t, err)
		assert.Equal(t, signer.ID, got)
	})

	t.Run("Different message recovers a different identity", func(t *testing.T) {
		got, err := identity.Recover("other", signer.Sign(t, "msg"))
		if err == nil {
			assert.NotEqual(t, signer.ID, got)
		}
	})

	t.Run("Wrong length fails", func(t *testing.T) {
		_, err := identity.Recover("msg", []byte{1, 2, 3})
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})

	t.Run("Bad recovery id fails", func(t *testing.T) {
		sig := signer.Sign(t, "msg")
		sig[64] = 42
		_, err := identity.Recover("msg", sig)
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})

	t.Run("Zero signature fails without panicking", func(t *testing.T) {
		_, err := identity.Recover("msg", make([]byte, identity.SignatureLength))
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})
}

func TestVerify(t *testing.T) {
	signer := identitytest.NewSigner(t)
	other := identitytest.NewSigner(t)
	sig := signer.SignHex(t, "claim item")

	t.Run("Accepts matching claimed address in any case", func(t *testing.T) {
		id, err := identity.Verify("claim item", sig, strings.ToUpper(signer.ID.String()[2:]))
		require.NoError(t, err)
		assert.Equal(t, signer.ID, id)
	})

	t.Run("Accepts empty claimed address", func(t *testing.T) {
		id, err := identity.Verify("claim item", sig, "")
		require.NoError(t, err)
		assert.Equal(t, signer.ID, id)
	})

	t.Run("Rejects mismatched claimed address", func(t *testing.T) {
		_, err := identity.Verify("claim item", sig, other.ID.String())
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})

	t.Run("Rejects non-hex signature", func(t *testing.T) {
		_, err := identity.Verify("claim item", "0xzz", "")
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})

	t.Run("Rejects missing message", func(t *testing.T) {
		_, err := identity.Verify("", sig, "")
		assert.ErrorIs(t, err, identity.ErrInvalidSignature)
	})
}

func TestIdentityCaseInsensitive(t *testing.T) {
	lower := identity.MustParse("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	upper := identity.MustParse("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	mixed := identity.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	assert.Equal(t, lower, upper)
	assert.Equal(t, lower, mixed)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", upper.String())
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", lower.Hex())
}

func TestIdentityTextRoundTrip(t *testing.T) {
	id := identity.MustParse("0xab5801a7d398351b8be11c439e05c5b3259aec9b")

	var scanned identity.Identity
	require.NoError(t, scanned.Scan([]byte(id.String())))
	assert.Equal(t, id, scanned)

	_, err := identity.Parse("not-an-address")
	assert.Error(t, err)
	assert.True(t, identity.Zero.IsZero())
}

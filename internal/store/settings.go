package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetConfirmationSecret retrieves the key used to sign transfer
// confirmation tokens. If no secret exists, it generates one, stores it,
// and returns it.
// Uses INSERT OR IGNORE + re-SELECT so concurrent startups agree on one value.
func GetConfirmationSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating confirmation secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('confirmation_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing confirmation secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'confirmation_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying confirmation secret: %w", err)
	}

	return secret, nil
}

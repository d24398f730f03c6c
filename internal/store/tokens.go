package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ConsumeToken records a confirmation token's JTI as used. It reports false
// if the JTI had already been consumed.
func ConsumeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO used_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("consuming token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consuming token: %w", err)
	}

	// Opportunistically clean up expired entries.
	_, _ = db.ExecContext(ctx,
		`DELETE FROM used_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)

	return n == 1, nil
}

// IsTokenUsed checks if a token's JTI has already been consumed.
func IsTokenUsed(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM used_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token use: %w", err)
	}
	return count > 0, nil
}

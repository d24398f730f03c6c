package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
)

// ErrVersionConflict is returned by CommitItem when the item changed since
// it was loaded.
var ErrVersionConflict = errors.New("item was modified concurrently")

// ItemParams holds the finder-supplied fields of a new item.
type ItemParams struct {
	Name        string
	Description string
	Location    string
	Finder      identity.Identity
	Tags        []string
	TokenID     string
}

// ItemFilter narrows ListItems. Zero fields match everything.
type ItemFilter struct {
	Status string
	Finder identity.Identity
}

const itemColumns = `id, name, description, location, finder, loser, status, tags, token_id,
	embedding, image_mime, version, created_at, updated_at`

// CreateItem creates a new available item.
func CreateItem(ctx context.Context, db *sql.DB, p ItemParams) (*model.Item, error) {
	tags, err := json.Marshal(model.NormalizeTags(p.Tags))
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, location, finder, status, tags, token_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Description, p.Location, p.Finder, model.ItemStatusAvailable, string(tags),
		nullString(p.TokenID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item with its claims, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	item.Claims, err = listClaims(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns items with their claims, newest first.
func ListItems(ctx context.Context, db *sql.DB, f ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if !f.Finder.IsZero() {
		query += ` AND finder = ?`
		args = append(args, f.Finder)
	}
	query += ` ORDER BY created_at DESC, id`

	items, err := queryItems(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	// Claims are loaded after the item rows are closed; the pool has one connection.
	for i := range items {
		items[i].Claims, err = listClaims(ctx, db, items[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ListSearchable returns available items that have an embedding. Claims
// are not loaded.
func ListSearchable(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	items, err := queryItems(ctx, db,
		`SELECT `+itemColumns+` FROM items
		 WHERE status = ? AND embedding IS NOT NULL AND length(embedding) > 0`,
		model.ItemStatusAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("listing searchable items: %w", err)
	}
	return items, nil
}

// CommitItem writes the item's lifecycle state (status, loser, claims) in a
// single transaction, provided the stored version still equals
// expectedVersion. On success item.Version is advanced.
func CommitItem(ctx context.Context, db *sql.DB, item *model.Item, expectedVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var loser any
	if item.Loser != nil {
		loser = *item.Loser
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, loser = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		item.Status, loser, now, item.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking item update: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	// Write the approved claim last so the one-approved index never sees two.
	claims := append([]model.Claim(nil), item.Claims...)
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].Status != model.ClaimStatusApproved && claims[j].Status == model.ClaimStatusApproved
	})

	for _, c := range claims {
		seq := claimSeq(item.Claims, c.ID)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO claims (id, item_id, seq, applicant, secret_detail, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			     secret_detail = excluded.secret_detail,
			     status = excluded.status,
			     updated_at = excluded.updated_at`,
			c.ID, item.ID, seq, c.Applicant, c.SecretDetail, c.Status, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("writing claim %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item: %w", err)
	}

	item.Version = expectedVersion + 1
	item.UpdatedAt = now
	return nil
}

// SetItemEmbedding stores the item's embedding. It does not touch the
// lifecycle version.
func SetItemEmbedding(ctx context.Context, db *sql.DB, id string, embedding []float32) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET embedding = ? WHERE id = ?`,
		encodeEmbedding(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("setting item embedding: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, id string, image []byte, mime, etag string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, image_etag = ?, updated_at = ? WHERE id = ?`,
		image, mime, etag, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data, MIME type and entity tag.
func GetItemImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, string, error) {
	var image []byte
	var mime, etag sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime, image_etag FROM items WHERE id = ?`, id,
	).Scan(&image, &mime, &etag)
	if err == sql.ErrNoRows {
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, etag.String, nil
}

// NewClaimID returns a fresh claim identifier.
func NewClaimID() string {
	return uuid.NewString()
}

func listClaims(ctx context.Context, db *sql.DB, itemID string) ([]model.Claim, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, applicant, secret_detail, status, created_at, updated_at
		 FROM claims WHERE item_id = ? ORDER BY seq`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.ID, &c.Applicant, &c.SecretDetail, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func queryItems(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var loser, tokenID, imageMime sql.NullString
	var tags string
	var embedding []byte
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Location, &item.Finder, &loser,
		&item.Status, &tags, &tokenID, &embedding, &imageMime, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if loser.Valid {
		id, err := identity.Parse(loser.String)
		if err != nil {
			return nil, fmt.Errorf("parsing loser: %w", err)
		}
		item.Loser = &id
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	item.TokenID = tokenID.String
	item.ImageMime = imageMime.String
	item.Embedding, err = decodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func claimSeq(claims []model.Claim, id string) int {
	for i, c := range claims {
		if c.ID == id {
			return i + 1
		}
	}
	return len(claims) + 1
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

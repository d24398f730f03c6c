package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/najdeno/internal/events"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// Service applies transitions to stored items. Transitions on one item run
// one at a time; different items proceed in parallel.
type Service struct {
	DB     *sql.DB
	Events events.Publisher
	Logger *slog.Logger

	// Now returns the transition timestamp. Defaults to time.Now in UTC.
	Now func() time.Time

	locks keyedMutex
}

// NewService returns a Service that publishes to pub, which may be nil.
func NewService(db *sql.DB, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		DB:     db,
		Events: pub,
		Logger: slog.Default().With("component", "lifecycle"),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the item with its claims.
func (s *Service) Load(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// SubmitClaim files or reopens caller's claim on the item.
func (s *Service) SubmitClaim(ctx context.Context, itemID string, caller identity.Identity, secret string) (*model.Item, *model.Claim, error) {
	var claimID string
	item, err := s.apply(ctx, itemID, events.ClaimSubmitted, caller, func(item *model.Item, now time.Time) (string, error) {
		id, err := Submit(item, caller, secret, store.NewClaimID(), now)
		claimID = id
		return id, err
	})
	if err != nil {
		return nil, nil, err
	}
	return item, item.Claim(claimID), nil
}

// RejectClaim rejects a pending claim. Only the finder may reject.
func (s *Service) RejectClaim(ctx context.Context, itemID, claimID string, caller identity.Identity) (*model.Item, error) {
	return s.apply(ctx, itemID, events.ClaimRejected, caller, func(item *model.Item, now time.Time) (string, error) {
		return claimID, Reject(item, caller, claimID, now)
	})
}

// ApproveClaim approves a pending claim. Only the finder may approve.
func (s *Service) ApproveClaim(ctx context.Context, itemID, claimID string, caller identity.Identity) (*model.Item, error) {
	return s.apply(ctx, itemID, events.ClaimApproved, caller, func(item *model.Item, now time.Time) (string, error) {
		return claimID, Approve(item, caller, claimID, now)
	})
}

// CancelHandover reopens an item awaiting handover. Only the finder may
// cancel.
func (s *Service) CancelHandover(ctx context.Context, itemID string, caller identity.Identity) (*model.Item, error) {
	return s.apply(ctx, itemID, events.HandoverCanceled, caller, func(item *model.Item, now time.Time) (string, error) {
		return "", CancelHandover(item, caller, now)
	})
}

// FinalizeClaim marks the item as claimed by owner. It is driven by a
// verified transfer confirmation, not by a user signature.
func (s *Service) FinalizeClaim(ctx context.Context, itemID string, owner identity.Identity) (*model.Item, error) {
	return s.apply(ctx, itemID, events.ItemClaimed, owner, func(item *model.Item, now time.Time) (string, error) {
		if err := Finalize(item, owner, now); err != nil {
			return "", err
		}
		return item.ClaimBy(owner).ID, nil
	})
}

// apply runs fn against a copy of the stored item and commits the result
// if the item has not changed since it was loaded. fn returns the ID of
// the claim it acted on, if any.
func (s *Service) apply(ctx context.Context, itemID, eventType string, actor identity.Identity, fn func(*model.Item, time.Time) (string, error)) (*model.Item, error) {
	unlock := s.locks.Lock(itemID)
	defer unlock()

	current, err := s.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	claimID, err := fn(next, s.Now())
	if err != nil {
		return nil, err
	}

	if err := store.CommitItem(ctx, s.DB, next, current.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("committing %s: %w", eventType, err)
	}

	s.Events.Publish(ctx, events.Event{
		Type:    eventType,
		ItemID:  next.ID,
		ClaimID: claimID,
		Actor:   actor.String(),
		Status:  next.Status,
		Version: next.Version,
		At:      next.UpdatedAt,
	})
	s.Logger.Info("transition committed", "type", eventType, "item", next.ID, "status", next.Status, "version", next.Version)
	return next, nil
}

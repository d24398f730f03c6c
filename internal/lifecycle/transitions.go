// Package lifecycle implements the claim state machine of a found item.
//
// The transition functions are pure: they check every guard against an
// item snapshot before touching it, so a failed transition leaves the
// snapshot unchanged. Service serializes them per item and commits the
// result atomically.
package lifecycle

import (
	"time"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
)

// Operation names, used as TransitionError.Attempted.
const (
	OpSubmit   = "submit_claim"
	OpReject   = "reject_claim"
	OpApprove  = "approve_claim"
	OpCancel   = "cancel_handover"
	OpFinalize = "finalize_claim"
)

// Submit files a claim by caller. A previously rejected claim by the same
// caller is reopened with the new secret; otherwise a claim with newID is
// appended. It returns the affected claim's ID.
func Submit(item *model.Item, caller identity.Identity, secret, newID string, now time.Time) (string, error) {
	if caller == item.Finder {
		return "", ErrUnauthorized
	}
	if item.Status != model.ItemStatusAvailable {
		return "", &TransitionError{Subject: SubjectItem, Current: item.Status, Attempted: OpSubmit}
	}

	if c := item.ClaimBy(caller); c != nil {
		if c.Status != model.ClaimStatusRejected {
			return "", &TransitionError{Subject: SubjectClaim, Current: c.Status, Attempted: OpSubmit}
		}
		c.Status = model.ClaimStatusPending
		c.SecretDetail = secret
		c.UpdatedAt = now
		return c.ID, nil
	}

	item.Claims = append(item.Claims, model.Claim{
		ID:           newID,
		Applicant:    caller,
		SecretDetail: secret,
		Status:       model.ClaimStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return newID, nil
}

// Reject rejects a pending claim.
func Reject(item *model.Item, caller identity.Identity, claimID string, now time.Time) error {
	if caller != item.Finder {
		return ErrUnauthorized
	}
	c := item.Claim(claimID)
	if c == nil {
		return ErrNotFound
	}
	if c.Status != model.ClaimStatusPending {
		return &TransitionError{Subject: SubjectClaim, Current: c.Status, Attempted: OpReject}
	}

	c.Status = model.ClaimStatusRejected
	c.UpdatedAt = now
	return nil
}

// Approve approves a pending claim, rejects every other pending claim and
// moves the item to pending_handover.
func Approve(item *model.Item, caller identity.Identity, claimID string, now time.Time) error {
	if caller != item.Finder {
		return ErrUnauthorized
	}
	target := item.Claim(claimID)
	if target == nil {
		return ErrNotFound
	}
	if item.Status != model.ItemStatusAvailable {
		return &TransitionError{Subject: SubjectItem, Current: item.Status, Attempted: OpApprove}
	}
	if target.Status != model.ClaimStatusPending {
		return &TransitionError{Subject: SubjectClaim, Current: target.Status, Attempted: OpApprove}
	}

	for k := range item.Claims {
		c := &item.Claims[k]
		switch {
		case c.ID == claimID:
			c.Status = model.ClaimStatusApproved
			c.UpdatedAt = now
		case c.Status == model.ClaimStatusPending:
			c.Status = model.ClaimStatusRejected
			c.UpdatedAt = now
		}
	}
	item.Status = model.ItemStatusPendingHandover
	return nil
}

// CancelHandover reopens an item awaiting handover: it becomes available
// and every approved or rejected claim goes back to pending.
func CancelHandover(item *model.Item, caller identity.Identity, now time.Time) error {
	if caller != item.Finder {
		return ErrUnauthorized
	}
	if item.Status != model.ItemStatusPendingHandover {
		return &TransitionError{Subject: SubjectItem, Current: item.Status, Attempted: OpCancel}
	}

	for k := range item.Claims {
		c := &item.Claims[k]
		if c.Status == model.ClaimStatusApproved || c.Status == model.ClaimStatusRejected {
			c.Status = model.ClaimStatusPending
			c.UpdatedAt = now
		}
	}
	item.Status = model.ItemStatusAvailable
	return nil
}

// Finalize records that ownership was transferred to owner. The owner's
// claim becomes the single approved claim and every other claim that is
// not already rejected is rejected.
func Finalize(item *model.Item, owner identity.Identity, now time.Time) error {
	if item.Status != model.ItemStatusPendingHandover {
		return &TransitionError{Subject: SubjectItem, Current: item.Status, Attempted: OpFinalize}
	}
	if item.ClaimBy(owner) == nil {
		return ErrNotFound
	}

	for k := range item.Claims {
		c := &item.Claims[k]
		switch {
		case c.Applicant == owner:
			if c.Status != model.ClaimStatusApproved {
				c.Status = model.ClaimStatusApproved
				c.UpdatedAt = now
			}
		case c.Status != model.ClaimStatusRejected:
			c.Status = model.ClaimStatusRejected
			c.UpdatedAt = now
		}
	}
	loser := owner
	item.Loser = &loser
	item.Status = model.ItemStatusClaimed
	return nil
}

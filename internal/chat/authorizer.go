// Package chat implements the private conversation between an item's
// finder and the applicant whose claim was approved. Access is derived
// from the item's claim state on every check; nothing about chat
// permission is stored separately.
package chat

import (
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// CanParticipate reports whether id may read and write the item's
// conversation: the finder while a handover is pending, or the applicant
// of the approved claim.
func CanParticipate(id identity.Identity, item *model.Item) bool {
	approved := item.ApprovedClaim()
	if approved == nil {
		return false
	}
	if id == item.Finder && item.Status == model.ItemStatusPendingHandover {
		return true
	}
	return id == approved.Applicant
}

// Counterparty returns the other participant of the conversation.
func Counterparty(id identity.Identity, item *model.Item) (identity.Identity, error) {
	if !CanParticipate(id, item) {
		return identity.Zero, lifecycle.ErrUnauthorized
	}
	if id == item.Finder {
		return item.ApprovedClaim().Applicant, nil
	}
	return item.Finder, nil
}

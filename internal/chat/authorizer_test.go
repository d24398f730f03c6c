package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

var (
	finder   = identity.MustParse("0xf000000000000000000000000000000000000001")
	alice    = identity.MustParse("0xa000000000000000000000000000000000000002")
	bob      = identity.MustParse("0xb000000000000000000000000000000000000003")
	stranger = identity.MustParse("0xc000000000000000000000000000000000000004")
)

func itemWith(status string, claims ...model.Claim) *model.Item {
	return &model.Item{ID: "item", Finder: finder, Status: status, Claims: claims}
}

func TestCanParticipate(t *testing.T) {
	approvedAlice := model.Claim{ID: "c1", Applicant: alice, Status: model.ClaimStatusApproved}
	pendingAlice := model.Claim{ID: "c1", Applicant: alice, Status: model.ClaimStatusPending}
	rejectedBob := model.Claim{ID: "c2", Applicant: bob, Status: model.ClaimStatusRejected}

	tests := []struct {
		name string
		id   identity.Identity
		item *model.Item
		want bool
	}{
		{"finder during handover", finder, itemWith(model.ItemStatusPendingHandover, approvedAlice, rejectedBob), true},
		{"approved applicant during handover", alice, itemWith(model.ItemStatusPendingHandover, approvedAlice, rejectedBob), true},
		{"rejected applicant", bob, itemWith(model.ItemStatusPendingHandover, approvedAlice, rejectedBob), false},
		{"stranger", stranger, itemWith(model.ItemStatusPendingHandover, approvedAlice), false},
		{"finder without approved claim", finder, itemWith(model.ItemStatusAvailable, pendingAlice), false},
		{"pending applicant", alice, itemWith(model.ItemStatusAvailable, pendingAlice), false},
		{"finder after claimed", finder, itemWith(model.ItemStatusClaimed, approvedAlice), false},
		{"owner after claimed", alice, itemWith(model.ItemStatusClaimed, approvedAlice), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanParticipate(tt.id, tt.item))
		})
	}
}

func TestCounterparty(t *testing.T) {
	item := itemWith(model.ItemStatusPendingHandover, model.Claim{ID: "c1", Applicant: alice, Status: model.ClaimStatusApproved})

	got, err := Counterparty(finder, item)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = Counterparty(alice, item)
	require.NoError(t, err)
	assert.Equal(t, finder, got)

	_, err = Counterparty(stranger, item)
	assert.ErrorIs(t, err, lifecycle.ErrUnauthorized)
}

package model

import (
	"time"

	"github.com/erazemk/najdeno/internal/identity"
)

// Claim is an applicant's request to be recognised as the item's owner.
type Claim struct {
	ID           string            `json:"id"`
	Applicant    identity.Identity `json:"applicant"`
	SecretDetail string            `json:"secret_detail,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Claim statuses. Archived is reserved and never produced.
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
	ClaimStatusArchived = "archived"
)

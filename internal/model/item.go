package model

import (
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/identity"
)

// Item is a found object registered by its finder, together with the
// ownership claims submitted against it.
type Item struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Finder      identity.Identity  `json:"finder"`
	Loser       *identity.Identity `json:"loster,omitempty"`
	Status      string             `json:"status"`
	Tags        []string           `json:"tags"`
	TokenID     string             `json:"token_id,omitempty"`
	ImageMime   string             `json:"image_mime,omitempty"`
	Embedding   []float32          `json:"-"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`

	// Claims in submission order. Not always populated.
	Claims []Claim `json:"claims,omitempty"`
}

// Item statuses.
const (
	ItemStatusAvailable       = "available"
	ItemStatusPendingHandover = "pending_handover"
	ItemStatusClaimed         = "claimed"
)

// Claim returns a pointer to the claim with the given ID, or nil.
func (i *Item) Claim(id string) *Claim {
	for k := range i.Claims {
		if i.Claims[k].ID == id {
			return &i.Claims[k]
		}
	}
	return nil
}

// ClaimBy returns a pointer to the claim submitted by applicant, or nil.
func (i *Item) ClaimBy(applicant identity.Identity) *Claim {
	for k := range i.Claims {
		if i.Claims[k].Applicant == applicant {
			return &i.Claims[k]
		}
	}
	return nil
}

// ApprovedClaim returns the approved claim, or nil if none is approved.
func (i *Item) ApprovedClaim() *Claim {
	for k := range i.Claims {
		if i.Claims[k].Status == ClaimStatusApproved {
			return &i.Claims[k]
		}
	}
	return nil
}

// Clone returns a deep copy so transitions can be applied without touching
// the original snapshot.
func (i *Item) Clone() *Item {
	c := *i
	if i.Loser != nil {
		loser := *i.Loser
		c.Loser = &loser
	}
	c.Tags = append([]string(nil), i.Tags...)
	c.Embedding = append([]float32(nil), i.Embedding...)
	c.Claims = append([]Claim(nil), i.Claims...)
	return &c
}

// Public returns a copy with the claimants' secret details removed.
func (i *Item) Public() *Item {
	c := i.Clone()
	for k := range c.Claims {
		c.Claims[k].SecretDetail = ""
	}
	return c
}

// NormalizeTags trims, drops empty and duplicate tags, and keeps the order
// of first appearance.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

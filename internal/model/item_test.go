package model

import (
	"testing"

	"github.com/erazemk/najdeno/internal/identity"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"wallet"}, []string{"wallet"}},
		{[]string{" wallet ", "wallet", ""}, []string{"wallet"}},
		{[]string{"umbrella", "black", "umbrella", "  "}, []string{"umbrella", "black"}},
	}

	for _, tt := range tests {
		got := NormalizeTags(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	loser := identity.MustParse("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	item := &Item{
		ID:     "i1",
		Status: ItemStatusAvailable,
		Loser:  &loser,
		Tags:   []string{"wallet"},
		Claims: []Claim{{ID: "c1", Status: ClaimStatusPending, SecretDetail: "initials R.K."}},
	}

	c := item.Clone()
	c.Claims[0].Status = ClaimStatusApproved
	c.Tags[0] = "bag"
	*c.Loser = identity.Zero

	if item.Claims[0].Status != ClaimStatusPending {
		t.Error("clone shares claims with original")
	}
	if item.Tags[0] != "wallet" {
		t.Error("clone shares tags with original")
	}
	if item.Loser.IsZero() {
		t.Error("clone shares loser with original")
	}
}

func TestPublicHidesSecrets(t *testing.T) {
	item := &Item{Claims: []Claim{{ID: "c1", SecretDetail: "engraved name"}}}

	pub := item.Public()
	if pub.Claims[0].SecretDetail != "" {
		t.Errorf("expected secret to be hidden, got %q", pub.Claims[0].SecretDetail)
	}
	if item.Claims[0].SecretDetail == "" {
		t.Error("Public modified the original item")
	}
}

func TestClaimLookups(t *testing.T) {
	a := identity.MustParse("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	b := identity.MustParse("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	item := &Item{Claims: []Claim{
		{ID: "c1", Applicant: a, Status: ClaimStatusRejected},
		{ID: "c2", Applicant: b, Status: ClaimStatusApproved},
	}}

	if c := item.Claim("c2"); c == nil || c.Applicant != b {
		t.Errorf("Claim(c2) = %v", c)
	}
	if c := item.ClaimBy(a); c == nil || c.ID != "c1" {
		t.Errorf("ClaimBy(a) = %v", c)
	}
	if c := item.ApprovedClaim(); c == nil || c.ID != "c2" {
		t.Errorf("ApprovedClaim() = %v", c)
	}
	if item.Claim("missing") != nil {
		t.Error("expected nil for missing claim")
	}
}

package identity

import (
	"errors"
	"testing"
)

func TestFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		uid    string
		claims map[string]interface{}
		want   Identity
	}{
		{"no role is customer", "u1", nil, Customer{UserID: "u1"}},
		{"customer", "u1", map[string]interface{}{"role": "Customer"}, Customer{UserID: "u1"}},
		{"admin", "a1", map[string]interface{}{"role": "admin"}, Admin{UserID: "a1"}},
		{"rider role", "p1", map[string]interface{}{"role": "rider"}, GenericPartner{PartnerID: "p1", PartnerRole: "rider"}},
		{"partner with partnerRole", "p1", map[string]interface{}{"role": "partner", "partnerRole": "picker"}, GenericPartner{PartnerID: "p1", PartnerRole: "picker"}},
		{"bare partner", "p1", map[string]interface{}{"role": "partner"}, GenericPartner{PartnerID: "p1", PartnerRole: "partner"}},
		{"service partner camel case", "s1", map[string]interface{}{"role": "servicePartner", "category": "salon"}, ServicePartner{PartnerID: "s1", Category: "salon"}},
		{"service partner snake case", "s1", map[string]interface{}{"role": "service_partner"}, ServicePartner{PartnerID: "s1"}},
		{"legacy partnerId", "", map[string]interface{}{"partnerId": "p9", "partnerRole": "rider"}, GenericPartner{PartnerID: "p9", PartnerRole: "rider"}},
		{"legacy userId", "", map[string]interface{}{"userId": "u9"}, Customer{UserID: "u9"}},
		{"legacy adminId", "", map[string]interface{}{"adminId": "a9"}, Admin{UserID: "a9"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromClaims(tc.uid, tc.claims)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestFromClaimsRejects(t *testing.T) {
	if _, err := FromClaims("", nil); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("empty uid: %v", err)
	}
	if _, err := FromClaims("x", map[string]interface{}{"role": "wizard"}); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("unknown role: %v", err)
	}
}

func TestRole(t *testing.T) {
	if (GenericPartner{PartnerID: "p"}).Role() != RolePartner {
		t.Error("empty partner role should default to partner")
	}
	if !IsPartner(ServicePartner{}) || IsPartner(Admin{}) {
		t.Error("IsPartner mismatch")
	}
}

// README: Caller identity resolved once per request or connection from verified token claims.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role names as they appear in claims and in status policy lookups.
const (
	RoleCustomer       = "customer"
	RoleAdmin          = "admin"
	RolePartner        = "partner"
	RoleRider          = "rider"
	RolePicker         = "picker"
	RoleServicePartner = "servicepartner"
)

var ErrUnknownIdentity = errors.New("unresolvable identity")

// Identity is a closed set: Customer, Admin, GenericPartner, ServicePartner.
type Identity interface {
	ID() string
	Role() string
	identity()
}

type Customer struct{ UserID string }

type Admin struct{ UserID string }

// GenericPartner is a delivery-side partner. PartnerRole is rider, picker, admin or partner.
type GenericPartner struct {
	PartnerID   string
	PartnerRole string
}

// ServicePartner fulfils orders of a single category.
type ServicePartner struct {
	PartnerID string
	Category  string
}

func (c Customer) ID() string   { return c.UserID }
func (c Customer) Role() string { return RoleCustomer }
func (Customer) identity()      {}

func (a Admin) ID() string   { return a.UserID }
func (a Admin) Role() string { return RoleAdmin }
func (Admin) identity()      {}

func (p GenericPartner) ID() string { return p.PartnerID }
func (p GenericPartner) Role() string {
	if p.PartnerRole == "" {
		return RolePartner
	}
	return p.PartnerRole
}
func (GenericPartner) identity() {}

func (s ServicePartner) ID() string   { return s.PartnerID }
func (s ServicePartner) Role() string { return RoleServicePartner }
func (ServicePartner) identity()      {}

// IsPartner reports whether id acts through a partner reference in order history.
func IsPartner(id Identity) bool {
	switch id.(type) {
	case GenericPartner, ServicePartner:
		return true
	}
	return false
}

// FromClaims builds an Identity from a verified token. The explicit partnerId,
// userId and adminId claims win over uid + role so tokens issued by the older
// login flow keep working.
func FromClaims(uid string, claims map[string]interface{}) (Identity, error) {
	role := normalizeRole(claimString(claims, "role"))
	category := claimString(claims, "category")

	if pid := claimString(claims, "partnerId"); pid != "" {
		return partnerIdentity(pid, role, claimString(claims, "partnerRole"), category)
	}
	if id := claimString(claims, "userId"); id != "" {
		return Customer{UserID: id}, nil
	}
	if id := claimString(claims, "adminId"); id != "" {
		return Admin{UserID: id}, nil
	}

	if uid == "" {
		return nil, ErrUnknownIdentity
	}
	switch role {
	case "", RoleCustomer:
		return Customer{UserID: uid}, nil
	case RoleAdmin:
		return Admin{UserID: uid}, nil
	case RolePartner, RoleRider, RolePicker, RoleServicePartner:
		return partnerIdentity(uid, role, claimString(claims, "partnerRole"), category)
	}
	return nil, fmt.Errorf("%w: role %q", ErrUnknownIdentity, role)
}

func partnerIdentity(id, role, partnerRole, category string) (Identity, error) {
	if role == RoleServicePartner {
		return ServicePartner{PartnerID: id, Category: category}, nil
	}
	pr := normalizeRole(partnerRole)
	if pr == "" {
		pr = role
	}
	switch pr {
	case "", RolePartner:
		return GenericPartner{PartnerID: id, PartnerRole: RolePartner}, nil
	case RoleRider, RolePicker, RoleAdmin:
		return GenericPartner{PartnerID: id, PartnerRole: pr}, nil
	}
	return nil, fmt.Errorf("%w: partner role %q", ErrUnknownIdentity, pr)
}

func normalizeRole(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	r = strings.ReplaceAll(r, "_", "")
	return r
}

func claimString(claims map[string]interface{}, key string) string {
	if claims == nil {
		return ""
	}
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

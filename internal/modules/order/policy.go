// README: Role-gated status policy (who may set which status, who sees which statuses).
package order

import (
	"slices"
	"strings"

	"keeva/internal/modules/identity"
)

var roleAllowedStatuses = map[string][]Status{
	identity.RolePicker:   {StatusAccepted, StatusAssigned},
	identity.RoleRider:    {StatusOutForDelivery, StatusDelivered},
	identity.RoleAdmin:    AllStatuses,
	identity.RoleCustomer: {StatusCancelled},
}

// serviceAllowedStatuses is what a service partner may set on its own category's orders.
var serviceAllowedStatuses = []Status{StatusAccepted, StatusOutForDelivery, StatusDelivered, StatusCancelled}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// AllowedStatuses returns a copy of the statuses role may set. Unknown roles get none.
func AllowedStatuses(role string) []Status {
	return slices.Clone(roleAllowedStatuses[normalizeRole(role)])
}

func IsTransitionAllowed(role string, to Status) bool {
	return slices.Contains(roleAllowedStatuses[normalizeRole(role)], to)
}

// VisibleStatuses is the status filter applied to a role's order listing.
func VisibleStatuses(role string) []Status {
	switch normalizeRole(role) {
	case identity.RolePicker:
		return append([]Status{StatusPending}, AllowedStatuses(identity.RolePicker)...)
	case identity.RoleRider:
		return append([]Status{StatusAssigned}, AllowedStatuses(identity.RoleRider)...)
	}
	return slices.Clone(AllStatuses)
}

func serviceStatusAllowed(to Status) bool {
	return slices.Contains(serviceAllowedStatuses, to)
}

package auth

import (
	"github.com/google/uuid"
)

// Role tags the kind of user behind a session.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Capability names an action gated by role.
type Capability string

const (
	CapBookAndPay       Capability = "book_and_pay"
	CapManageDiscounts  Capability = "manage_discounts"
	CapManagePolicies   Capability = "manage_policies"
	CapViewAllPayments  Capability = "view_all_payments"
	CapCancelAnyBooking Capability = "cancel_any_booking"
)

// Shared fields live on Session; what differs per role is only this table.
var roleCapabilities = map[Role][]Capability{
	RoleCustomer: {CapBookAndPay},
	RoleStaff:    {CapBookAndPay, CapManageDiscounts, CapViewAllPayments, CapCancelAnyBooking},
	RoleAdmin:    {CapBookAndPay, CapManageDiscounts, CapManagePolicies, CapViewAllPayments, CapCancelAnyBooking},
}

// Session is the caller identity passed explicitly into core operations.
type Session struct {
	UserID        uuid.UUID
	Role          Role
	Authenticated bool
}

// Anonymous returns an unauthenticated session.
func Anonymous() Session {
	return Session{}
}

// NewSession returns an authenticated session for userID.
func NewSession(userID uuid.UUID, role Role) Session {
	return Session{UserID: userID, Role: role, Authenticated: true}
}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the session holds capability c. Anonymous sessions hold none.
func (s Session) Can(c Capability) bool {
	if !s.Authenticated {
		return false
	}
	for _, have := range roleCapabilities[s.Role] {
		if have == c {
			return true
		}
	}
	return false
}

// Owns reports whether the session belongs to userID.
func (s Session) Owns(userID uuid.UUID) bool {
	return s.Authenticated && s.UserID == userID
}

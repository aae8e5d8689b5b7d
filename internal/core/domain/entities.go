package domain

import "time"

// Role represents a user's role in the permit office. The set is closed.
type Role string

const (
	RolePermittingOfficer    Role = "Permitting Officer"
	RoleUpperChairperson     Role = "Upper Manyame Chairperson"
	RoleCatchmentManager     Role = "Manyame Catchment Manager"
	RoleCatchmentChairperson Role = "Manyame Catchment Chairperson"
	RolePermitSupervisor     Role = "Permit Supervisor"
	RolePermitAdministrator  Role = "Permit Administrator"
	RoleICT                  Role = "ICT"
)

// Capability is a named permission flag granted to roles.
type Capability uint16

const (
	// CapAdministrative allows editing any non-terminal application, deleting
	// applications and setting bulk water validity.
	CapAdministrative Capability = 1 << iota
	// CapLogExempt suppresses activity log rows for the holder's actions.
	CapLogExempt
	CapManageUsers
	CapViewReports
	// CapManageDocuments allows document upload and delete on any non-terminal application.
	CapManageDocuments
	// CapPrintPermits allows printing permits the holder did not create.
	CapPrintPermits
)

var roleCapabilities = map[Role]Capability{
	RolePermittingOfficer:    0,
	RoleUpperChairperson:     0,
	RoleCatchmentManager:     0,
	RoleCatchmentChairperson: 0,
	RolePermitSupervisor:     CapViewReports | CapManageDocuments | CapPrintPermits,
	RolePermitAdministrator:  CapManageUsers,
	RoleICT:                  CapAdministrative | CapLogExempt | CapManageUsers | CapViewReports | CapManageDocuments | CapPrintPermits,
}

// AllRoles lists every role in display order.
func AllRoles() []Role {
	return []Role{
		RolePermittingOfficer,
		RoleUpperChairperson,
		RoleCatchmentManager,
		RoleCatchmentChairperson,
		RolePermitSupervisor,
		RolePermitAdministrator,
		RoleICT,
	}
}

// ParseRole converts a string into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", NewValidationError("role", "unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Has reports whether the role holds every flag in c.
func (r Role) Has(c Capability) bool {
	caps, ok := roleCapabilities[r]
	return ok && caps&c == c
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID   uint
	Username string
	Role     Role
}

// Has reports whether the actor's role holds capability c.
func (a *Actor) Has(c Capability) bool {
	return a != nil && a.Role.Has(c)
}

// LogExempt reports whether the actor's actions skip the activity log.
func (a *Actor) LogExempt() bool {
	return a.Has(CapLogExempt)
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

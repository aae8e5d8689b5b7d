// Package workflow holds the permit application state machine and the
// authorization gate every mutating operation passes through.
package workflow

import (
	"fmt"

	"manyame-permits/internal/core/domain"
)

// Subject is the application an operation targets.
type Subject struct {
	OwnerID uint
	Status  domain.Status
}

// Rule describes who may perform an operation.
//
// AllowedRoles, RequiredRole, Capability, OwnerOnly and RequiredStatus are
// checked in that order. An actor holding the Override capability skips all
// of them except Capability.
type Rule struct {
	AllowedRoles   []domain.Role
	RequiredRole   domain.Role
	Capability     domain.Capability
	OwnerOnly      bool
	RequiredStatus domain.Status
	Override       domain.Capability
}

// Authorize checks actor against rule. subject may be nil for operations that
// do not target an existing application.
func Authorize(actor *domain.Actor, rule Rule, subject *Subject) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	if !actor.Role.Valid() {
		return denied("unknown role %q", actor.Role)
	}
	if rule.Capability != 0 && !actor.Has(rule.Capability) {
		return denied("role %q lacks the required capability", actor.Role)
	}
	if rule.Override != 0 && actor.Has(rule.Override) {
		return nil
	}

	if rule.RequiredRole != "" && actor.Role != rule.RequiredRole {
		return denied("requires role %q", rule.RequiredRole)
	}
	if len(rule.AllowedRoles) > 0 && !containsRole(rule.AllowedRoles, actor.Role) {
		return denied("role %q is not allowed", actor.Role)
	}
	if subject == nil {
		return nil
	}
	if rule.OwnerOnly && subject.OwnerID != actor.UserID {
		return denied("only the creator may do this")
	}
	if rule.RequiredStatus != "" && subject.Status != rule.RequiredStatus {
		return &domain.TransitionError{
			From:   subject.Status,
			Reason: fmt.Sprintf("requires status %q", rule.RequiredStatus),
		}
	}
	return nil
}

// CanRead reports whether actor may view the application. Permitting officers
// only see their own applications.
func CanRead(actor *domain.Actor, subject Subject) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	if !actor.Role.Valid() {
		return denied("unknown role %q", actor.Role)
	}
	if actor.Role == domain.RolePermittingOfficer && subject.OwnerID != actor.UserID {
		return denied("application belongs to another officer")
	}
	return nil
}

// CanPrint reports whether actor may render the permit document.
func CanPrint(actor *domain.Actor, subject Subject) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	if subject.OwnerID != actor.UserID && !actor.Has(domain.CapPrintPermits) {
		return denied("only the creator or a supervisor may print this permit")
	}
	if subject.Status != domain.StatusApproved {
		return &domain.TransitionError{Action: "print", From: subject.Status, Reason: "only approved permits can be printed"}
	}
	return nil
}

func containsRole(roles []domain.Role, r domain.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func denied(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, fmt.Sprintf(format, args...))
}

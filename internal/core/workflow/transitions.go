package workflow

import (
	"manyame-permits/internal/core/domain"
)

// Action names an operation governed by the transition table.
type Action string

const (
	ActionCreate         Action = "create"
	ActionEdit           Action = "edit"
	ActionSubmit         Action = "submit"
	ActionReview         Action = "review"
	ActionManagerReview  Action = "manager_review"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionUploadDocument Action = "upload_document"
	ActionDeleteDocument Action = "delete_document"
	ActionSetValidity    Action = "set_validity"
	ActionDelete         Action = "delete"
)

// Transition is one row of the workflow table.
type Transition struct {
	Action Action
	Rule   Rule
	// From is the status the application must be in. Empty means any
	// non-terminal status unless AnyStatus is set.
	From      domain.Status
	AnyStatus bool
	// To is the resulting status. Empty leaves the status unchanged.
	To        domain.Status
	LogAction string
}

// Transitions is the single source of truth for who may do what, and when.
var Transitions = map[Action]Transition{
	ActionCreate: {
		Action:    ActionCreate,
		Rule:      Rule{RequiredRole: domain.RolePermittingOfficer},
		To:        domain.StatusUnsubmitted,
		LogAction: domain.ActionApplicationCreated,
	},
	ActionEdit: {
		Action: ActionEdit,
		Rule: Rule{
			RequiredRole:   domain.RolePermittingOfficer,
			OwnerOnly:      true,
			RequiredStatus: domain.StatusUnsubmitted,
			Override:       domain.CapAdministrative,
		},
		LogAction: domain.ActionApplicationEdited,
	},
	ActionSubmit: {
		Action:    ActionSubmit,
		Rule:      Rule{RequiredRole: domain.RolePermittingOfficer, OwnerOnly: true},
		From:      domain.StatusUnsubmitted,
		To:        domain.StatusSubmitted,
		LogAction: domain.ActionApplicationSubmitted,
	},
	ActionReview: {
		Action:    ActionReview,
		Rule:      Rule{RequiredRole: domain.RoleUpperChairperson},
		From:      domain.StatusSubmitted,
		To:        domain.StatusUnderReview,
		LogAction: domain.ActionApplicationReviewed,
	},
	ActionManagerReview: {
		Action:    ActionManagerReview,
		Rule:      Rule{RequiredRole: domain.RoleCatchmentManager},
		From:      domain.StatusUnderReview,
		To:        domain.StatusManagerReviewed,
		LogAction: domain.ActionManagerReview,
	},
	ActionApprove: {
		Action:    ActionApprove,
		Rule:      Rule{RequiredRole: domain.RoleCatchmentChairperson},
		From:      domain.StatusManagerReviewed,
		To:        domain.StatusApproved,
		LogAction: domain.ActionApplicationApproved,
	},
	ActionReject: {
		Action:    ActionReject,
		Rule:      Rule{RequiredRole: domain.RoleCatchmentChairperson},
		From:      domain.StatusManagerReviewed,
		To:        domain.StatusRejected,
		LogAction: domain.ActionApplicationRejected,
	},
	ActionUploadDocument: {
		Action: ActionUploadDocument,
		Rule: Rule{
			RequiredRole:   domain.RolePermittingOfficer,
			OwnerOnly:      true,
			RequiredStatus: domain.StatusUnsubmitted,
			Override:       domain.CapManageDocuments,
		},
		LogAction: domain.ActionDocumentUploaded,
	},
	ActionDeleteDocument: {
		Action: ActionDeleteDocument,
		Rule: Rule{
			RequiredRole:   domain.RolePermittingOfficer,
			OwnerOnly:      true,
			RequiredStatus: domain.StatusUnsubmitted,
			Override:       domain.CapManageDocuments,
		},
		LogAction: domain.ActionDocumentDeleted,
	},
	ActionSetValidity: {
		Action:    ActionSetValidity,
		Rule:      Rule{Capability: domain.CapAdministrative},
		From:      domain.StatusApproved,
		LogAction: domain.ActionValiditySet,
	},
	ActionDelete: {
		Action:    ActionDelete,
		Rule:      Rule{Capability: domain.CapAdministrative},
		AnyStatus: true,
	},
}

// Plan resolves the transition actor may perform on subject. subject is nil
// only for ActionCreate. Authorization is evaluated before the status check so
// an actor lacking the role is denied regardless of the application's status.
func Plan(actor *domain.Actor, action Action, subject *Subject) (Transition, error) {
	t, ok := Transitions[action]
	if !ok {
		return Transition{}, domain.NewValidationError("action", "unknown action %q", action)
	}
	if err := Authorize(actor, t.Rule, subject); err != nil {
		if te, ok := err.(*domain.TransitionError); ok {
			te.Action = string(action)
		}
		return Transition{}, err
	}
	if subject == nil || t.AnyStatus {
		return t, nil
	}

	switch {
	case t.From != "" && subject.Status != t.From:
		return Transition{}, &domain.TransitionError{
			Action: string(action),
			From:   subject.Status,
			Reason: "requires status " + string(t.From),
		}
	case t.From == "" && subject.Status.Terminal():
		return Transition{}, &domain.TransitionError{
			Action: string(action),
			From:   subject.Status,
			Reason: "application is closed",
		}
	}
	return t, nil
}

// Target returns the status after t is applied to an application in status from.
func (t Transition) Target(from domain.Status) domain.Status {
	if t.To == "" {
		return from
	}
	return t.To
}

// queueOrder is the sequence of status-changing actions along the workflow.
var queueOrder = []Action{ActionSubmit, ActionReview, ActionManagerReview, ActionApprove}

// Queue returns the work queue status for role, and whether the queue only
// holds the actor's own applications. ok is false for roles that see every
// application.
func Queue(role domain.Role) (status domain.Status, ownOnly bool, ok bool) {
	for _, a := range queueOrder {
		t := Transitions[a]
		if t.Rule.RequiredRole == role || containsRole(t.Rule.AllowedRoles, role) {
			return t.From, t.Rule.OwnerOnly, true
		}
	}
	return "", false, false
}

var displayOrder = []Action{
	ActionEdit,
	ActionSubmit,
	ActionReview,
	ActionManagerReview,
	ActionApprove,
	ActionReject,
	ActionUploadDocument,
	ActionSetValidity,
	ActionDelete,
}

// AvailableActions lists the actions actor could perform on subject right now.
func AvailableActions(actor *domain.Actor, subject Subject) []Action {
	var out []Action
	for _, a := range displayOrder {
		if _, err := Plan(actor, a, &subject); err == nil {
			out = append(out, a)
		}
	}
	return out
}

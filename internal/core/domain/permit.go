package domain

import (
	"fmt"
	"time"
)

// PermitTypeBulkWater permits get their validity set by an administrator after approval.
const PermitTypeBulkWater = "Bulk Water"

// PermitValidity is the default lifetime of an approved permit.
const PermitValidity = 1825 * 24 * time.Hour

// FormatPermitNumber renders the permit identifier for the given year and sequence.
func FormatPermitNumber(year, seq int) string {
	return fmt.Sprintf("WP-%d-%04d", year, seq)
}

// DefaultValidUntil derives the expiry of a permit approved at approvedAt.
// Bulk water permits return nil.
func DefaultValidUntil(permitType string, approvedAt time.Time) *time.Time {
	if permitType == PermitTypeBulkWater {
		return nil
	}
	t := approvedAt.Add(PermitValidity)
	return &t
}

// Activity log action labels.
const (
	ActionApplicationCreated   = "Application Created"
	ActionApplicationEdited    = "Application Edited"
	ActionApplicationSubmitted = "Application Submitted"
	ActionApplicationReviewed  = "Application Reviewed"
	ActionManagerReview        = "Manager Review"
	ActionApplicationApproved  = "Application Approved"
	ActionApplicationRejected  = "Application Rejected"
	ActionDocumentUploaded     = "Document Uploaded"
	ActionDocumentViewed       = "Document Viewed"
	ActionDocumentDeleted      = "Document Deleted"
	ActionCommentAdded         = "Comment Added"
	ActionValiditySet          = "Validity Set"
)

// ActivityActions lists every label the activity log can contain.
func ActivityActions() []string {
	return []string{
		ActionApplicationCreated,
		ActionApplicationEdited,
		ActionApplicationSubmitted,
		ActionApplicationReviewed,
		ActionManagerReview,
		ActionApplicationApproved,
		ActionApplicationRejected,
		ActionDocumentUploaded,
		ActionDocumentViewed,
		ActionDocumentDeleted,
		ActionCommentAdded,
		ActionValiditySet,
	}
}

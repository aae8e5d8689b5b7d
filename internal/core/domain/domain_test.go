package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseRole("Superuser")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleICT.Has(CapAdministrative))
	assert.True(t, RoleICT.Has(CapLogExempt|CapManageUsers))
	assert.True(t, RolePermitSupervisor.Has(CapViewReports))
	assert.False(t, RolePermitSupervisor.Has(CapAdministrative))
	assert.True(t, RolePermitAdministrator.Has(CapManageUsers))
	assert.False(t, RolePermitAdministrator.Has(CapViewReports))
	assert.False(t, RolePermittingOfficer.Has(CapManageDocuments))
	assert.False(t, Role("nobody").Has(0))

	var nilActor *Actor
	assert.False(t, nilActor.LogExempt())
	assert.True(t, (&Actor{Role: RoleICT}).LogExempt())
	assert.False(t, (&Actor{Role: RolePermitSupervisor}).LogExempt())
}

func TestStatusRank(t *testing.T) {
	statuses := AllStatuses()
	for i := 1; i < len(statuses)-1; i++ {
		assert.Less(t, statuses[i-1].Rank(), statuses[i].Rank())
	}
	assert.Equal(t, StatusApproved.Rank(), StatusRejected.Rank())
	assert.Equal(t, -1, Status("Archived").Rank())

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusManagerReviewed.Terminal())

	_, err := ParseStatus("Pending")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFormatPermitNumber(t *testing.T) {
	assert.Equal(t, "WP-2025-0001", FormatPermitNumber(2025, 1))
	assert.Equal(t, "WP-2025-0123", FormatPermitNumber(2025, 123))
	assert.Equal(t, "WP-2026-12345", FormatPermitNumber(2026, 12345))
}

func TestDefaultValidUntil(t *testing.T) {
	approved := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	got := DefaultValidUntil("Irrigation", approved)
	require.NotNil(t, got)
	assert.Equal(t, approved.AddDate(0, 0, 1825), *got)

	assert.Nil(t, DefaultValidUntil(PermitTypeBulkWater, approved))
}

func TestMissingRequiredDocuments(t *testing.T) {
	missing := MissingRequiredDocuments([]string{"ID Copy", "Other"})
	assert.Equal(t, []DocumentType{DocProofOfResidence, DocProofOfOwnership}, missing)

	assert.Empty(t, MissingRequiredDocuments([]string{"Proof of Ownership", "ID Copy", "Proof of Residence"}))

	err := &MissingDocumentsError{Missing: missing}
	assert.True(t, errors.Is(err, ErrMissingRequiredDocument))
	assert.Contains(t, err.Error(), "Proof of Ownership")
}

func TestAllowedFile(t *testing.T) {
	cases := map[string]bool{
		"id.pdf":        true,
		"PHOTO.JPG":     true,
		"scan.jpeg":     true,
		"plan.docx":     true,
		"archive.zip":   false,
		"noextension":   false,
		"script.pdf.sh": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, AllowedFile(name), name)
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "Required Documents", CategoryOf(DocIDCopy))
	assert.Equal(t, "Technical Documents", CategoryOf(DocCapacityTest))
	assert.Equal(t, "Additional Documents", CategoryOf(DocOther))

	_, err := ParseDocumentType("Tax Clearance")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("store document", cause)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, NewStorageError("noop", nil))
}

func TestContentTypeFor(t *testing.T) {
	ct, ok := ContentTypeFor("PHOTO.JPG")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)
	assert.True(t, InlineSafe(ct))

	ct, ok = ContentTypeFor("plan.doc")
	require.True(t, ok)
	assert.Equal(t, "application/msword", ct)
	assert.False(t, InlineSafe(ct))

	_, ok = ContentTypeFor("page.html")
	assert.False(t, ok)
	assert.False(t, InlineSafe("text/html"))
}

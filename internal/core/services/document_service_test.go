package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/core/domain"
)

func upload(appID uint, docType, filename string, data []byte) *UploadInput {
	return &UploadInput{
		ApplicationID: appID,
		DocumentType:  docType,
		Filename:      filename,
		Data:          data,
	}
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)
	data := []byte("%PDF-1.4 national id")

	doc, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocIDCopy), "../../My ID (front).pdf", data))
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.FileHash)
	assert.EqualValues(t, len(data), doc.FileSize)
	assert.Equal(t, "My_ID_front.pdf", doc.OriginalFilename)
	assert.True(t, strings.HasPrefix(doc.FilePath, fmt.Sprintf("%d/", app.ID)))
	assert.Equal(t, f.officer.UserID, doc.UploadedBy)
	assert.Equal(t, 1, f.files.count())

	logs := f.logsFor(t, app.ID)
	assert.Equal(t, 1, countAction(logs, domain.ActionDocumentUploaded))
}

func TestUploadDocumentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	cases := []struct {
		name  string
		input *UploadInput
	}{
		{"unknown type", upload(app.ID, "Passport Photo", "a.pdf", []byte("x"))},
		{"extension", upload(app.ID, string(domain.DocIDCopy), "a.exe", []byte("x"))},
		{"no extension", upload(app.ID, string(domain.DocIDCopy), "README", []byte("x"))},
		{"no file", upload(app.ID, string(domain.DocIDCopy), "", []byte("x"))},
		{"empty", upload(app.ID, string(domain.DocIDCopy), "a.pdf", nil)},
		{"too large", upload(app.ID, string(domain.DocIDCopy), "a.pdf", make([]byte, 1<<20+1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.docs.UploadDocument(ctx, f.officer, tc.input)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Equal(t, 0, f.files.count())
}

func TestUploadDocumentGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)
	input := func() *UploadInput { return upload(app.ID, string(domain.DocOther), "extra.png", []byte("png")) }

	_, err := f.docs.UploadDocument(ctx, nil, input())
	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
	_, err = f.docs.UploadDocument(ctx, other, input())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.docs.UploadDocument(ctx, f.chair, input())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, 0, f.files.count())

	submitted := f.advance(t, domain.StatusSubmitted)
	_, err = f.docs.UploadDocument(ctx, f.officer, upload(submitted.ID, string(domain.DocOther), "late.pdf", []byte("x")))
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.docs.UploadDocument(ctx, f.super, upload(submitted.ID, string(domain.DocCapacityTest), "test.pdf", []byte("x")))
	assert.NoError(t, err, "document managers may upload at any open status")

	approved := f.advance(t, domain.StatusApproved)
	_, err = f.docs.UploadDocument(ctx, f.ict, upload(approved.ID, string(domain.DocOther), "x.pdf", []byte("x")))
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestUploadDocumentStorageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)
	f.files.failStore = errors.New("disk full")

	_, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocIDCopy), "id.pdf", []byte("x")))
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	docs, err := f.store.Documents.ListByApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, docs, "metadata is only written after the file is stored")
	assert.Equal(t, 0, countAction(f.logsFor(t, app.ID), domain.ActionDocumentUploaded))
}

func TestUploadDocumentRemovesFileWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	require.NoError(t, f.store.DB().Migrator().DropTable(&models.Document{}))

	_, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocIDCopy), "id.pdf", []byte("x")))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Equal(t, 0, f.files.count())
	assert.Equal(t, 0, countAction(f.logsFor(t, app.ID), domain.ActionDocumentUploaded))
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)

	doc, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocIDCopy), "id.pdf", []byte("x")))
	require.NoError(t, err)

	assert.ErrorIs(t, f.docs.DeleteDocument(ctx, other, doc.ID), domain.ErrPermissionDenied)

	require.NoError(t, f.docs.DeleteDocument(ctx, f.officer, doc.ID))
	assert.Equal(t, 0, f.files.count())
	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionDocumentDeleted))

	assert.ErrorIs(t, f.docs.DeleteDocument(ctx, f.officer, doc.ID), domain.ErrNotFound)
}

func TestDeleteDocumentKeepsFileWhenStorageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	doc, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocIDCopy), "id.pdf", []byte("x")))
	require.NoError(t, err)

	f.files.failDelete = errors.New("io error")
	require.NoError(t, f.docs.DeleteDocument(ctx, f.officer, doc.ID))

	_, err = f.store.Documents.GetByID(ctx, doc.ID)
	assert.Error(t, err, "metadata is gone once the transaction commits")
	assert.Equal(t, 1, f.files.count(), "the file is left behind as an orphan")
	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionDocumentDeleted))
}

func TestUploadDocumentIgnoresDeclaredContentType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	cases := map[string]string{
		"id.pdf":    "application/pdf",
		"id.JPG":    "image/jpeg",
		"id.png":    "image/png",
		"deed.doc":  "application/msword",
		"deed.docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	for name, want := range cases {
		doc, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocOther), name, []byte("<script>alert(1)</script>")))
		require.NoError(t, err, name)
		assert.Equal(t, want, doc.ContentType, name)
	}
}

func TestOpenDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)
	data := []byte("%PDF-1.4 deed")

	doc, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocProofOfOwnership), "deed.pdf", data))
	require.NoError(t, err)

	got, body, err := f.docs.OpenDocument(ctx, f.upper, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, data, body)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionDocumentViewed))

	_, _, err = f.docs.OpenDocument(ctx, other, doc.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	f.files.blobs[doc.FilePath] = []byte("tampered")
	_, _, err = f.docs.OpenDocument(ctx, f.officer, doc.ID)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestListDocumentsGroupedAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)
	f.attachRequired(t, f.officer, app.ID)

	extra, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocWaterQualityTest), "quality.pdf", []byte("q")))
	require.NoError(t, err)

	groups, err := f.docs.ListDocumentsGrouped(ctx, f.officer, app.ID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Required Documents", groups[0].Category)
	for _, slot := range groups[0].Slots {
		assert.True(t, slot.Required)
		assert.Len(t, slot.Documents, 1)
	}
	assert.Equal(t, "Technical Documents", groups[1].Category)
	assert.False(t, groups[1].Slots[0].Required)
	assert.Len(t, groups[1].Slots[2].Documents, 1)
	assert.Empty(t, groups[2].Slots[0].Documents)

	_, _, err = f.docs.OpenDocument(ctx, f.chair, extra.ID)
	require.NoError(t, err)

	history, err := f.docs.DocumentHistory(ctx, f.officer, extra.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionDocumentViewed, history[0].Action)
	assert.Equal(t, domain.ActionDocumentUploaded, history[1].Action)
}

func TestDocumentHistoryIsPerDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	// same file name on every checklist slot
	f.attachRequired(t, f.officer, app.ID)
	docs, err := f.store.Documents.ListByApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, docs, len(domain.RequiredDocuments))

	var deed *models.Document
	for _, d := range docs {
		if d.DocumentType == string(domain.DocProofOfOwnership) {
			deed = d
		}
	}
	require.NotNil(t, deed)

	history, err := f.docs.DocumentHistory(ctx, f.officer, deed.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Uploaded Proof of Ownership: scan.pdf", history[0].Details)
	require.NotNil(t, history[0].DocumentID)
	assert.Equal(t, deed.ID, *history[0].DocumentID)

	// names with LIKE wildcards do not match neighbours either
	a, err := f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocOther), "a_b.pdf", []byte("1")))
	require.NoError(t, err)
	_, err = f.docs.UploadDocument(ctx, f.officer, upload(app.ID, string(domain.DocOther), "axb.pdf", []byte("2")))
	require.NoError(t, err)
	history, err = f.docs.DocumentHistory(ctx, f.officer, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"id.pdf":                 "id.pdf",
		"../../etc/passwd.pdf":   "passwd.pdf",
		`C:\Users\tendai\id.png`: "id.png",
		"my scan (1).PDF":        "my_scan_1.PDF",
		"..hidden.pdf":           "hidden.pdf",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

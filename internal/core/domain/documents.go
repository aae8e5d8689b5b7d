package domain

import (
	"path/filepath"
	"strings"
)

// DocumentType is a checklist entry for supporting documents.
type DocumentType string

const (
	DocIDCopy              DocumentType = "ID Copy"
	DocProofOfResidence    DocumentType = "Proof of Residence"
	DocProofOfOwnership    DocumentType = "Proof of Ownership"
	DocBoreholeCertificate DocumentType = "Borehole Certificate"
	DocCapacityTest        DocumentType = "Capacity Test"
	DocWaterQualityTest    DocumentType = "Water Quality Test"
	DocOther               DocumentType = "Other"
)

// DocumentCategory groups checklist entries for display.
type DocumentCategory struct {
	Name  string
	Types []DocumentType
}

// DocumentCategories is the fixed checklist in display order.
var DocumentCategories = []DocumentCategory{
	{Name: "Required Documents", Types: []DocumentType{DocIDCopy, DocProofOfResidence, DocProofOfOwnership}},
	{Name: "Technical Documents", Types: []DocumentType{DocBoreholeCertificate, DocCapacityTest, DocWaterQualityTest}},
	{Name: "Additional Documents", Types: []DocumentType{DocOther}},
}

// RequiredDocuments must all be attached before an application can be submitted.
var RequiredDocuments = DocumentCategories[0].Types

// AllowedExtensions lists accepted upload file extensions, lowercase without the dot.
var AllowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"}

var extensionTypes = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ParseDocumentType converts a string into a DocumentType from the checklist.
func ParseDocumentType(s string) (DocumentType, error) {
	for _, c := range DocumentCategories {
		for _, t := range c.Types {
			if string(t) == s {
				return t, nil
			}
		}
	}
	return "", NewValidationError("document_type", "unknown document type %q", s)
}

// CategoryOf returns the checklist category name for t.
func CategoryOf(t DocumentType) string {
	for _, c := range DocumentCategories {
		for _, ct := range c.Types {
			if ct == t {
				return c.Name
			}
		}
	}
	return DocumentCategories[len(DocumentCategories)-1].Name
}

// AllowedFile reports whether filename carries an accepted extension.
func AllowedFile(filename string) bool {
	_, ok := ContentTypeFor(filename)
	return ok
}

// ContentTypeFor returns the media type served for filename, derived from its
// extension alone.
func ContentTypeFor(filename string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	ct, ok := extensionTypes[ext]
	return ct, ok
}

// InlineSafe reports whether a stored content type may be rendered inline by a browser.
func InlineSafe(contentType string) bool {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/png":
		return true
	}
	return false
}

// MissingRequiredDocuments returns the required types not present in attached.
func MissingRequiredDocuments(attached []string) []DocumentType {
	have := make(map[string]struct{}, len(attached))
	for _, a := range attached {
		have[a] = struct{}{}
	}
	var missing []DocumentType
	for _, r := range RequiredDocuments {
		if _, ok := have[string(r)]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

package models

import "time"

// DocumentStatus represents the lifecycle of a generated or uploaded file.
type DocumentStatus string

const (
	DocumentDraft            DocumentStatus = "DRAFT"
	DocumentPendingSignature DocumentStatus = "PENDING_SIGNATURE"
	DocumentSigned           DocumentStatus = "SIGNED"
	DocumentRejected         DocumentStatus = "REJECTED"
	DocumentCancelled        DocumentStatus = "CANCELLED"
)

// Document records one generated letter or uploaded artifact per form code
// per application. Version increments on regeneration; earlier stored copies
// remain addressable by their versioned path, only FileURL moves.
type Document struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"application_id"`
	Type          FormType       `db:"type" json:"type"`
	Status        DocumentStatus `db:"status" json:"status"`
	FileURL       string         `db:"file_url" json:"file_url"`
	Version       int            `db:"version" json:"version"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// RequiredDocumentTypes lists the letters that must reach SIGNED before an
// application can be approved.
var RequiredDocumentTypes = []FormType{FormBLI01, FormBLI03, FormBLI04}

// PendingChange reports whether the document still awaits resubmission after
// a change request decided at decidedAt: it is pending iff its last update
// does not postdate the decision and it has not been signed since.
func (d *Document) PendingChange(decidedAt time.Time) bool {
	return !d.UpdatedAt.After(decidedAt) && d.Status != DocumentSigned
}

package models

import "time"

// ReviewDecision enumerates coordinator decisions.
type ReviewDecision string

const (
	DecisionApprove        ReviewDecision = "APPROVE"
	DecisionRequestChanges ReviewDecision = "REQUEST_CHANGES"
	DecisionReject         ReviewDecision = "REJECT"
)

// Review is a coordinator decision on an application, optionally scoped to
// one document. History is append-only; the only removal path is the
// audited maintenance cleanup.
type Review struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"application_id"`
	DocumentID    *string        `db:"document_id" json:"document_id,omitempty"`
	ReviewerID    string         `db:"reviewer_id" json:"reviewer_id"`
	Decision      ReviewDecision `db:"decision" json:"decision"`
	Comments      string         `db:"comments" json:"comments,omitempty"`
	DecidedAt     time.Time      `db:"decided_at" json:"decided_at"`
}

// ReviewDetail enriches Review with reviewer identity.
type ReviewDetail struct {
	Review
	ReviewerName string `db:"reviewer_name" json:"reviewer_name"`
}

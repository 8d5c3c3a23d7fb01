package models

import "time"

// StudentSessionStatus tracks the enrollment lifecycle within a session.
type StudentSessionStatus string

const (
	StudentSessionActive    StudentSessionStatus = "active"
	StudentSessionCompleted StudentSessionStatus = "completed"
	StudentSessionWithdrawn StudentSessionStatus = "withdrawn"
)

// StudentSession enrolls a student in a session, snapshotting the credits
// earned at import time. IsEligible is derived against the session's
// minimum credits and frozen with the snapshot.
type StudentSession struct {
	ID            string               `db:"id" json:"id"`
	StudentID     string               `db:"student_id" json:"student_id"`
	SessionID     string               `db:"session_id" json:"session_id"`
	CreditsEarned int                  `db:"credits_earned" json:"credits_earned"`
	IsEligible    bool                 `db:"is_eligible" json:"is_eligible"`
	Status        StudentSessionStatus `db:"status" json:"status"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// EligibilityResult is the outcome of the pre-application gate.
type EligibilityResult struct {
	IsEligible    bool `json:"is_eligible"`
	CreditsEarned int  `json:"credits_earned"`
	MinCredits    int  `json:"min_credits"`
}

// ImportRowError identifies one rejected CSV row.
type ImportRowError struct {
	Row      int    `json:"row"`
	MatricNo string `json:"matric_no,omitempty"`
	Message  string `json:"message"`
}

// ImportResult summarises a CSV bulk import. Row failures accumulate here
// and never abort the batch.
type ImportResult struct {
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Errors     []ImportRowError `json:"errors"`
}

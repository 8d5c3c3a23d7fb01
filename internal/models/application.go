package models

import "time"

// ApplicationStatus represents the lifecycle of a training application.
type ApplicationStatus string

// Application state machine:
// DRAFT -> SUBMITTED -> UNDER_REVIEW -> APPROVED | REJECTED,
// any non-terminal -> CANCELLED.
const (
	ApplicationDraft       ApplicationStatus = "DRAFT"
	ApplicationSubmitted   ApplicationStatus = "SUBMITTED"
	ApplicationUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationApproved    ApplicationStatus = "APPROVED"
	ApplicationRejected    ApplicationStatus = "REJECTED"
	ApplicationCancelled   ApplicationStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationApproved || s == ApplicationRejected || s == ApplicationCancelled
}

// Application is the aggregate root: one row per student-per-session
// attempt. Only the latest attempt is kept; replacing an application
// cascades over its documents, form responses and reviews.
type Application struct {
	ID              string            `db:"id" json:"id"`
	UserID          string            `db:"user_id" json:"user_id"`
	SessionID       string            `db:"session_id" json:"session_id"`
	Status          ApplicationStatus `db:"status" json:"status"`
	CompanyName     string            `db:"company_name" json:"company_name"`
	CompanyAddress  string            `db:"company_address" json:"company_address"`
	CompanyIndustry string            `db:"company_industry" json:"company_industry"`
	SupervisorName  string            `db:"supervisor_name" json:"supervisor_name,omitempty"`
	SupervisorEmail string            `db:"supervisor_email" json:"supervisor_email,omitempty"`
	StartDate       time.Time         `db:"start_date" json:"start_date"`
	EndDate         time.Time         `db:"end_date" json:"end_date"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches Application with student, session and
// coordinator context.
type ApplicationDetail struct {
	Application
	StudentName      string `db:"student_name" json:"student_name"`
	StudentMatric    string `db:"student_matric" json:"student_matric"`
	Program          string `db:"program" json:"program"`
	Faculty          string `db:"faculty" json:"faculty,omitempty"`
	SessionName      string `db:"session_name" json:"session_name"`
	CoordinatorName  string `db:"coordinator_name" json:"coordinator_name,omitempty"`
	CoordinatorEmail string `db:"coordinator_email" json:"coordinator_email,omitempty"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	UserID    string
	SessionID string
	Status    ApplicationStatus
	Program   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package models

import "time"

// ReportFilter narrows aggregate queries; zero values mean no filter.
type ReportFilter struct {
	SessionID string
	Program   string
}

// OverviewReport is the dashboard headline rollup.
type OverviewReport struct {
	TotalStudents        int     `db:"total_students" json:"total_students"`
	TotalApplications    int     `db:"total_applications" json:"total_applications"`
	Approved             int     `db:"approved" json:"approved"`
	PendingReview        int     `db:"pending_review" json:"pending_review"`
	ChangesRequested     int     `db:"changes_requested" json:"changes_requested"`
	SLI03Issued          int     `db:"sli03_issued" json:"sli03_issued"`
	CompletedInternships int     `db:"completed_internships" json:"completed_internships"`
	AvgReviewDays        float64 `db:"avg_review_days" json:"avg_review_days"`
	ApprovalRate         float64 `db:"approval_rate" json:"approval_rate"`
}

// TrendPoint is one month's application count.
type TrendPoint struct {
	Month time.Time `db:"month" json:"month"`
	Count int       `db:"count" json:"count"`
}

// StatusCount is an application count grouped by status.
type StatusCount struct {
	Status ApplicationStatus `db:"status" json:"status"`
	Count  int               `db:"count" json:"count"`
}

// ProgramCount is an application count grouped by student program.
type ProgramCount struct {
	Program string `db:"program" json:"program"`
	Count   int    `db:"count" json:"count"`
}

// CompanyCount ranks host companies by placements.
type CompanyCount struct {
	CompanyName string `db:"company_name" json:"company_name"`
	Count       int    `db:"count" json:"count"`
}

// IndustryCount is an application count grouped by company industry.
type IndustryCount struct {
	Industry string `db:"industry" json:"industry"`
	Count    int    `db:"count" json:"count"`
}

// DocumentTypeStats rolls up one document type's lifecycle counts.
// ChangeRequests counts documents whose latest change request has not been
// addressed yet.
type DocumentTypeStats struct {
	Type            FormType `db:"type" json:"type"`
	Total           int      `db:"total" json:"total"`
	Signed          int      `db:"signed" json:"signed"`
	PendingApproval int      `db:"pending_approval" json:"pending_approval"`
	ChangeRequests  int      `db:"change_requests" json:"change_requests"`
}

// ReviewerPerformance summarises one reviewer's throughput.
type ReviewerPerformance struct {
	ReviewerID     string  `db:"reviewer_id" json:"reviewer_id"`
	ReviewerName   string  `db:"reviewer_name" json:"reviewer_name"`
	TotalReviews   int     `db:"total_reviews" json:"total_reviews"`
	Approvals      int     `db:"approvals" json:"approvals"`
	ChangeRequests int     `db:"change_requests" json:"change_requests"`
	Rejections     int     `db:"rejections" json:"rejections"`
	AvgDecisionHrs float64 `db:"avg_decision_hrs" json:"avg_decision_hrs"`
}

// StudentProgress tracks one student's distance from completion.
type StudentProgress struct {
	StudentID    string            `db:"student_id" json:"student_id"`
	StudentName  string            `db:"student_name" json:"student_name"`
	MatricNo     string            `db:"matric_no" json:"matric_no"`
	Program      string            `db:"program" json:"program"`
	Status       ApplicationStatus `db:"status" json:"status"`
	SignedDocs   int               `db:"signed_docs" json:"signed_docs"`
	RequiredDocs int               `db:"required_docs" json:"required_docs"`
}

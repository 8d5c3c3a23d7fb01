package models

import "time"

// Session is a training term during which a cohort of students may apply
// for placements.
type Session struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Year          int       `db:"year" json:"year"`
	Semester      int       `db:"semester" json:"semester"`
	MinCredits    int       `db:"min_credits" json:"min_credits"`
	MinWeeks      int       `db:"min_weeks" json:"min_weeks"`
	MaxWeeks      int       `db:"max_weeks" json:"max_weeks"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CoordinatorID string    `db:"coordinator_id" json:"coordinator_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SessionDetail enriches Session with its coordinator's identity.
type SessionDetail struct {
	Session
	CoordinatorName  string `db:"coordinator_name" json:"coordinator_name"`
	CoordinatorEmail string `db:"coordinator_email" json:"coordinator_email"`
}

// SessionFilter provides filters for listing sessions.
type SessionFilter struct {
	Year     int
	IsActive *bool
	Page     int
	PageSize int
}

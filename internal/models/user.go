package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent     UserRole = "STUDENT"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleLecturer    UserRole = "LECTURER"
	RoleAdmin       UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
// MatricNo, Program and Faculty are populated for students only; MatricNo is
// unique when present.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	MatricNo      *string    `db:"matric_no" json:"matric_no,omitempty"`
	Program       string     `db:"program" json:"program,omitempty"`
	Faculty       string     `db:"faculty" json:"faculty,omitempty"`
	CreditsEarned int        `db:"credits_earned" json:"credits_earned"`
	Active        bool       `db:"active" json:"active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Program   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/internship-office/ptms-api/internal/models"
)

// StudentSessionRepository handles persistence of enrollment snapshots.
type StudentSessionRepository struct {
	db *sqlx.DB
}

// NewStudentSessionRepository constructs the repository.
func NewStudentSessionRepository(db *sqlx.DB) *StudentSessionRepository {
	return &StudentSessionRepository{db: db}
}

// FindByStudentAndSession returns the enrollment snapshot for the pair.
func (r *StudentSessionRepository) FindByStudentAndSession(ctx context.Context, studentID, sessionID string) (*models.StudentSession, error) {
	const query = `SELECT id, student_id, session_id, credits_earned, is_eligible, status, created_at, updated_at
        FROM student_sessions WHERE student_id = $1 AND session_id = $2 LIMIT 1`
	var enrollment models.StudentSession
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, sessionID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// HasOtherActiveEnrollment reports whether the student is already enrolled
// in a different active session.
func (r *StudentSessionRepository) HasOtherActiveEnrollment(ctx context.Context, studentID, sessionID string) (bool, error) {
	const query = `SELECT 1 FROM student_sessions ss
        JOIN sessions s ON s.id = ss.session_id
        WHERE ss.student_id = $1 AND ss.session_id <> $2 AND ss.status = $3 AND s.is_active = TRUE
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, sessionID, models.StudentSessionActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Upsert creates or refreshes the enrollment snapshot for a student/session
// pair. Credits and eligibility are rewritten on every import.
func (r *StudentSessionRepository) Upsert(ctx context.Context, enrollment *models.StudentSession) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO student_sessions (id, student_id, session_id, credits_earned, is_eligible, status, created_at, updated_at)
        VALUES (:id, :student_id, :session_id, :credits_earned, :is_eligible, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, session_id) DO UPDATE
        SET credits_earned = EXCLUDED.credits_earned, is_eligible = EXCLUDED.is_eligible, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("upsert student session: %w", err)
	}
	return nil
}

// ListBySession returns the enrollment snapshots for a session.
func (r *StudentSessionRepository) ListBySession(ctx context.Context, sessionID string) ([]models.StudentSession, error) {
	const query = `SELECT id, student_id, session_id, credits_earned, is_eligible, status, created_at, updated_at
        FROM student_sessions WHERE session_id = $1`
	var enrollments []models.StudentSession
	if err := r.db.SelectContext(ctx, &enrollments, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session enrollments: %w", err)
	}
	return enrollments, nil
}

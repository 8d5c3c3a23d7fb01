package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/internship-office/ptms-api/internal/models"
)

const applicationColumns = `id, user_id, session_id, status, company_name, company_address, company_industry, supervisor_name, supervisor_email, start_date, end_date, created_at, updated_at`

// ApplicationRepository handles persistence of training applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByUserAndSession returns the current application for the pair, if any.
func (r *ApplicationRepository) FindByUserAndSession(ctx context.Context, userID, sessionID string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE user_id = $1 AND session_id = $2 LIMIT 1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, userID, sessionID); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindDetailByID returns an application with student and session context.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	const query = `SELECT a.id, a.user_id, a.session_id, a.status, a.company_name, a.company_address, a.company_industry,
        a.supervisor_name, a.supervisor_email, a.start_date, a.end_date, a.created_at, a.updated_at,
        u.full_name AS student_name, COALESCE(u.matric_no, '') AS student_matric, u.program,
        COALESCE(u.faculty, '') AS faculty, s.name AS session_name,
        COALESCE(c.full_name, '') AS coordinator_name, COALESCE(c.email, '') AS coordinator_email
        FROM applications a
        LEFT JOIN users u ON u.id = a.user_id
        LEFT JOIN sessions s ON s.id = a.session_id
        LEFT JOIN users c ON c.id = s.coordinator_id
        WHERE a.id = $1`
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
LEFT JOIN users u ON u.id = a.user_id
LEFT JOIN sessions s ON s.id = a.session_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("a.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("u.program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "a.created_at",
		"status":       "a.status",
		"student_name": "u.full_name",
		"company_name": "a.company_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.session_id, a.status, a.company_name, a.company_address, a.company_industry,
        a.supervisor_name, a.supervisor_email, a.start_date, a.end_date, a.created_at, a.updated_at,
        u.full_name AS student_name, COALESCE(u.matric_no, '') AS student_matric, u.program, s.name AS session_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// Replace atomically deletes any prior application for the (user, session)
// pair together with its dependent rows, then inserts the new application.
// A partial unique index on (user_id, session_id) WHERE status NOT IN
// (terminal) backs this against two concurrent creations racing past the
// lookup; the loser surfaces a unique violation out of the INSERT.
func (r *ApplicationRepository) Replace(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace application: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deps = `SELECT id FROM applications WHERE user_id = $1 AND session_id = $2`
	for _, stmt := range []string{
		`DELETE FROM reviews WHERE application_id IN (` + deps + `)`,
		`DELETE FROM documents WHERE application_id IN (` + deps + `)`,
		`DELETE FROM form_responses WHERE application_id IN (` + deps + `)`,
		`DELETE FROM applications WHERE user_id = $1 AND session_id = $2`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, app.UserID, app.SessionID); err != nil {
			return fmt.Errorf("cascade prior application: %w", err)
		}
	}

	const insert = `INSERT INTO applications (id, user_id, session_id, status, company_name, company_address, company_industry, supervisor_name, supervisor_email, start_date, end_date, created_at, updated_at)
        VALUES (:id, :user_id, :session_id, :status, :company_name, :company_address, :company_industry, :supervisor_name, :supervisor_email, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, app); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace application: %w", err)
	}
	return nil
}

// UpdateStatus moves the application to a new lifecycle status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// Update persists mutable company and date-range fields.
func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET company_name = :company_name, company_address = :company_address, company_industry = :company_industry,
        supervisor_name = :supervisor_name, supervisor_email = :supervisor_email, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// CountDependents returns how many child rows a replace would erase.
func (r *ApplicationRepository) CountDependents(ctx context.Context, applicationID string) (documents, forms, reviews int, err error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM documents WHERE application_id = $1) AS documents,
        (SELECT COUNT(*) FROM form_responses WHERE application_id = $1) AS forms,
        (SELECT COUNT(*) FROM reviews WHERE application_id = $1) AS reviews`
	row := r.db.QueryRowxContext(ctx, query, applicationID)
	if err := row.Scan(&documents, &forms, &reviews); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, fmt.Errorf("count application dependents: %w", err)
	}
	return documents, forms, reviews, nil
}

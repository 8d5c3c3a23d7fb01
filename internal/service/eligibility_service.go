package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/internship-office/ptms-api/internal/models"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByStudentAndSession(ctx context.Context, studentID, sessionID string) (*models.StudentSession, error)
	HasOtherActiveEnrollment(ctx context.Context, studentID, sessionID string) (bool, error)
	Upsert(ctx context.Context, enrollment *models.StudentSession) error
}

type importUserRepository interface {
	FindByMatric(ctx context.Context, matricNo string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// EligibilityService gates applications on the credit requirement and runs
// the CSV roster import.
type EligibilityService struct {
	enrollments enrollmentRepository
	users       importUserRepository
	sessions    sessionReader
	metrics     *MetricsService
	logger      *zap.Logger
}

// WithMetrics attaches an optional metrics recorder.
func (s *EligibilityService) WithMetrics(metrics *MetricsService) *EligibilityService {
	s.metrics = metrics
	return s
}

func (s *EligibilityService) recordRow(success bool) {
	if s.metrics != nil {
		s.metrics.RecordImportRow(success)
	}
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(enrollments enrollmentRepository, users importUserRepository, sessions sessionReader, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{enrollments: enrollments, users: users, sessions: sessions, logger: logger}
}

// Check evaluates the credit gate for one student against a session. A
// student whose snapshot exactly meets the minimum is eligible.
func (s *EligibilityService) Check(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	enrollment, err := s.enrollments.FindByStudentAndSession(ctx, studentID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return &models.EligibilityResult{
		IsEligible:    enrollment.CreditsEarned >= session.MinCredits,
		CreditsEarned: enrollment.CreditsEarned,
		MinCredits:    session.MinCredits,
	}, nil
}

// importColumns maps normalised CSV headers to positions.
type importColumns struct {
	matric  int
	name    int
	email   int
	program int
	faculty int
	credits int
	status  int
}

// ImportStudents reads a roster CSV and upserts one enrollment snapshot per
// row. Rows fail independently: a malformed row is reported and skipped,
// never aborting the batch. Headers match case-insensitively in any order.
func (s *EligibilityService) ImportStudents(ctx context.Context, sessionID string, reader io.Reader, actorID string) (*models.ImportResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv file is empty or unreadable")
	}
	cols, err := resolveImportColumns(header)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	result := &models.ImportResult{}
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.Total++
			result.Failed++
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Message: "malformed csv row"})
			s.recordRow(false)
			continue
		}
		result.Total++
		if rowErr := s.importRow(ctx, session, cols, record); rowErr != nil {
			rowErr.Row = rowNum
			result.Failed++
			result.Errors = append(result.Errors, *rowErr)
			s.recordRow(false)
			continue
		}
		result.Successful++
		s.recordRow(true)
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentImport,
		Resource:   "student_sessions",
		ResourceID: &sessionID,
		NewValues:  []byte(fmt.Sprintf(`{"total":%d,"successful":%d,"failed":%d}`, result.Total, result.Successful, result.Failed)),
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}

	s.logger.Info("student roster imported",
		zap.String("session_id", sessionID),
		zap.Int("total", result.Total),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *EligibilityService) importRow(ctx context.Context, session *models.Session, cols importColumns, record []string) *models.ImportRowError {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	matricNo := field(cols.matric)
	if matricNo == "" {
		return &models.ImportRowError{Message: "missing matric number"}
	}
	credits, err := strconv.Atoi(field(cols.credits))
	if err != nil || credits < 0 {
		return &models.ImportRowError{MatricNo: matricNo, Message: "invalid credits value"}
	}
	status, err := normalizeEnrollmentStatus(field(cols.status))
	if err != nil {
		return &models.ImportRowError{MatricNo: matricNo, Message: err.Error()}
	}

	user, err := s.users.FindByMatric(ctx, matricNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ImportRowError{MatricNo: matricNo, Message: "matric number does not match any student account"}
		}
		return &models.ImportRowError{MatricNo: matricNo, Message: "failed to look up student"}
	}
	if user.Role != models.RoleStudent {
		return &models.ImportRowError{MatricNo: matricNo, Message: "matric number belongs to a non-student account"}
	}
	if credits < session.MinCredits {
		return &models.ImportRowError{MatricNo: matricNo, Message: fmt.Sprintf("credits below the session minimum of %d", session.MinCredits)}
	}

	if status == models.StudentSessionActive {
		clash, err := s.enrollments.HasOtherActiveEnrollment(ctx, user.ID, session.ID)
		if err != nil {
			return &models.ImportRowError{MatricNo: matricNo, Message: "failed to check existing enrollments"}
		}
		if clash {
			return &models.ImportRowError{MatricNo: matricNo, Message: "student is already active in another session"}
		}
	}

	enrollment := &models.StudentSession{
		StudentID:     user.ID,
		SessionID:     session.ID,
		CreditsEarned: credits,
		// Rows below the session minimum were rejected above.
		IsEligible: true,
		Status:     status,
	}
	if err := s.enrollments.Upsert(ctx, enrollment); err != nil {
		return &models.ImportRowError{MatricNo: matricNo, Message: "failed to save enrollment"}
	}
	return nil
}

func resolveImportColumns(header []string) (importColumns, error) {
	cols := importColumns{matric: -1, name: -1, email: -1, program: -1, faculty: -1, credits: -1, status: -1}
	for i, raw := range header {
		switch normalizeHeader(raw) {
		case "matricno", "matric", "matricnumber":
			cols.matric = i
		case "name", "fullname", "studentname":
			cols.name = i
		case "email":
			cols.email = i
		case "program", "programme", "course":
			cols.program = i
		case "faculty":
			cols.faculty = i
		case "credits", "creditsearned", "credithours":
			cols.credits = i
		case "status", "enrollmentstatus":
			cols.status = i
		}
	}
	if cols.matric < 0 {
		return cols, errors.New("csv header missing matric_no column")
	}
	if cols.credits < 0 {
		return cols, errors.New("csv header missing credits column")
	}
	if cols.status < 0 {
		return cols, errors.New("csv header missing status column")
	}
	return cols, nil
}

func normalizeHeader(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF")))
	cleaned = strings.ReplaceAll(cleaned, "_", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return cleaned
}

// normalizeEnrollmentStatus tolerates the spellings seen in faculty
// spreadsheets; "not_enrolled" and the common "no_enrolled" typo both map
// to active so the row still imports.
func normalizeEnrollmentStatus(raw string) (models.StudentSessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "active", "enrolled", "not_enrolled", "no_enrolled":
		return models.StudentSessionActive, nil
	case "completed":
		return models.StudentSessionCompleted, nil
	case "withdrawn":
		return models.StudentSessionWithdrawn, nil
	default:
		return "", fmt.Errorf("unknown enrollment status %q", raw)
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/campus-api/internal/models"
)

// AttendanceRepository handles persistence of attendance sessions and their
// per-student records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const sessionColumns = `id, course_id, semester, academic_year, date, topic, session_type, duration_hours, marked_by, active, created_at`

// FindSessionByID returns a session together with its records.
func (r *AttendanceRepository) FindSessionByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE id = $1`, sessionColumns)
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}

	const recordsQuery = `SELECT id, session_id, student_id, status, remarks FROM attendance_records WHERE session_id = $1`
	if err := r.db.SelectContext(ctx, &session.Records, recordsQuery, id); err != nil {
		return nil, fmt.Errorf("load attendance records: %w", err)
	}
	return &session, nil
}

// SessionExists checks the (course, date, session type) uniqueness the
// schema enforces with a unique index.
func (r *AttendanceRepository) SessionExists(ctx context.Context, courseID string, date time.Time, sessionType models.SessionType) (bool, error) {
	const query = `SELECT 1 FROM attendance_sessions WHERE course_id = $1 AND date = $2 AND session_type = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, date, sessionType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance session: %w", err)
	}
	return true, nil
}

// CreateSession inserts a session with its records in one transaction.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = time.Now().UTC()
	session.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const sessionInsert = `INSERT INTO attendance_sessions (id, course_id, semester, academic_year, date, topic, session_type, duration_hours, marked_by, active, created_at)
        VALUES (:id, :course_id, :semester, :academic_year, :date, :topic, :session_type, :duration_hours, :marked_by, :active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, sessionInsert, session); err != nil {
		return fmt.Errorf("create attendance session: %w", err)
	}

	const recordInsert = `INSERT INTO attendance_records (id, session_id, student_id, status, remarks)
        VALUES ($1, $2, $3, $4, $5)`
	for i := range session.Records {
		record := &session.Records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.SessionID = session.ID
		if _, err := tx.ExecContext(ctx, recordInsert, record.ID, record.SessionID, record.StudentID, record.Status, record.Remarks); err != nil {
			return fmt.Errorf("create attendance record: %w", err)
		}
	}

	return tx.Commit()
}

// ReplaceRecords swaps the record list of a session.
func (r *AttendanceRepository) ReplaceRecords(ctx context.Context, sessionID string, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear attendance records: %w", err)
	}

	const recordInsert = `INSERT INTO attendance_records (id, session_id, student_id, status, remarks)
        VALUES ($1, $2, $3, $4, $5)`
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.SessionID = sessionID
		if _, err := tx.ExecContext(ctx, recordInsert, record.ID, record.SessionID, record.StudentID, record.Status, record.Remarks); err != nil {
			return fmt.Errorf("insert attendance record: %w", err)
		}
	}

	return tx.Commit()
}

// ListSessions returns sessions for a course, newest first, with records.
func (r *AttendanceRepository) ListSessions(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceSession, error) {
	conditions := []string{"active = TRUE"}
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE %s ORDER BY date DESC`,
		sessionColumns, strings.Join(conditions, " AND "))

	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}

	for i := range sessions {
		const recordsQuery = `SELECT id, session_id, student_id, status, remarks FROM attendance_records WHERE session_id = $1`
		if err := r.db.SelectContext(ctx, &sessions[i].Records, recordsQuery, sessions[i].ID); err != nil {
			return nil, fmt.Errorf("load attendance records: %w", err)
		}
	}
	return sessions, nil
}

// ListStudentSessions returns the flattened per-student view of sessions
// the student has a record in, newest first.
func (r *AttendanceRepository) ListStudentSessions(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.StudentSessionView, error) {
	conditions := []string{"a.active = TRUE", "r.student_id = $1"}
	args := []interface{}{studentID}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("a.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	query := fmt.Sprintf(`SELECT a.id AS session_id, a.course_id, c.code AS course_code, c.title AS course_title,
        a.date, a.topic, a.session_type, r.status, r.remarks
        FROM attendance_sessions a
        JOIN attendance_records r ON r.session_id = a.id
        LEFT JOIN courses c ON c.id = a.course_id
        WHERE %s ORDER BY a.date DESC`, strings.Join(conditions, " AND "))

	var views []models.StudentSessionView
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return views, nil
}

// CountSessions tallies the attendance aggregate inputs for one student in
// a course/semester: total sessions the student has a record in, sessions
// present, and sessions late.
func (r *AttendanceRepository) CountSessions(ctx context.Context, studentID, courseID string, semester int) (total, present, late int, err error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE r.status = 'present') AS present,
        COUNT(*) FILTER (WHERE r.status = 'late') AS late
        FROM attendance_sessions a
        JOIN attendance_records r ON r.session_id = a.id
        WHERE a.active = TRUE AND r.student_id = $1 AND a.course_id = $2 AND a.semester = $3`

	row := r.db.QueryRowxContext(ctx, query, studentID, courseID, semester)
	if err = row.Scan(&total, &present, &late); err != nil {
		return 0, 0, 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, present, late, nil
}

// DeactivateSession soft-deletes a session.
func (r *AttendanceRepository) DeactivateSession(ctx context.Context, id string) error {
	const query = `UPDATE attendance_sessions SET active = FALSE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

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

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.semester, e.academic_year, e.enrolled_at,
        e.status, e.grade, e.grade_points, e.attendance_percentage, e.active,
        s.name AS student_name, s.roll_number AS student_roll_number,
        c.code AS course_code, c.title AS course_title, c.credits AS course_credits
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, semester, academic_year, enrolled_at, status, grade, grade_points, attendance_percentage, active
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks for an enrollment on the exact (student, course, semester)
// triple regardless of status. A dropped enrollment still occupies the slot;
// the unique index backs this check authoritatively.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string, semester int) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, semester); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// FindActiveByStudentAndCourse returns the student's active enrollment in a
// course, if any.
func (r *EnrollmentRepository) FindActiveByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, semester, academic_year, enrolled_at, status, grade, grade_points, attendance_percentage, active
        FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("e.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := enrollmentDetailSelect + clause + ` ORDER BY e.semester DESC, e.enrolled_at DESC`

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListForGPA returns the GPA credit pool for a student: enrollments with a
// qualifying status, joined with course credits, scoped by semester.
// semester is the inclusive upper bound, or the single semester when exact is
// true. Callers resolve a positive semester before calling.
func (r *EnrollmentRepository) ListForGPA(ctx context.Context, studentID string, semester int, exact bool) ([]models.EnrollmentDetail, error) {
	semesterClause := "e.semester <= $2"
	if exact {
		semesterClause = "e.semester = $2"
	}
	query := enrollmentDetailSelect + fmt.Sprintf(` WHERE e.student_id = $1 AND %s AND e.status IN ($3, $4)`, semesterClause)

	var enrollments []models.EnrollmentDetail
	err := r.db.SelectContext(ctx, &enrollments, query, studentID, semester,
		models.EnrollmentStatusActive, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list gpa enrollments: %w", err)
	}
	return enrollments, nil
}

// Create inserts an enrollment and assigns its ID.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.EnrolledAt = time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusActive
	enrollment.Active = true

	const query = `INSERT INTO enrollments (id, student_id, course_id, semester, academic_year, enrolled_at, status, grade, grade_points, attendance_percentage, active)
        VALUES (:id, :student_id, :course_id, :semester, :academic_year, :enrolled_at, :status, :grade, :grade_points, :attendance_percentage, :active)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update persists grade, status and derived fields.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = :status, grade = :grade, grade_points = :grade_points,
        attendance_percentage = :attendance_percentage, active = :active WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, enrollment)
	return err
}

// UpdateAttendancePercentage writes the denormalized attendance aggregate
// onto the enrollment matching (student, course, semester).
func (r *EnrollmentRepository) UpdateAttendancePercentage(ctx context.Context, studentID, courseID string, semester int, percentage float64) error {
	const query = `UPDATE enrollments SET attendance_percentage = $4
        WHERE student_id = $1 AND course_id = $2 AND semester = $3`
	_, err := r.db.ExecContext(ctx, query, studentID, courseID, semester, percentage)
	return err
}

// ListActiveCourseIDs returns the course IDs of a student's active
// enrollments, optionally scoped to one semester.
func (r *EnrollmentRepository) ListActiveCourseIDs(ctx context.Context, studentID string, semester int) ([]string, error) {
	query := `SELECT course_id FROM enrollments WHERE student_id = $1 AND status = $2`
	args := []interface{}{studentID, models.EnrollmentStatusActive}
	if semester > 0 {
		query += fmt.Sprintf(" AND semester = $%d", len(args)+1)
		args = append(args, semester)
	}

	var courseIDs []string
	if err := r.db.SelectContext(ctx, &courseIDs, query, args...); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courseIDs, nil
}

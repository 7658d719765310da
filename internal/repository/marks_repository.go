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

// MarksRepository handles persistence of exam marks.
type MarksRepository struct {
	db *sqlx.DB
}

// NewMarksRepository constructs the repository.
func NewMarksRepository(db *sqlx.DB) *MarksRepository {
	return &MarksRepository{db: db}
}

const marksColumns = `id, student_id, course_id, semester, academic_year, exam_type, max_marks, marks_obtained, percentage, grade, remarks, entered_by, active, created_at, updated_at`

// FindByID returns a marks record by ID.
func (r *MarksRepository) FindByID(ctx context.Context, id string) (*models.Marks, error) {
	query := fmt.Sprintf(`SELECT %s FROM marks WHERE id = $1`, marksColumns)
	var marks models.Marks
	if err := r.db.GetContext(ctx, &marks, query, id); err != nil {
		return nil, err
	}
	return &marks, nil
}

// Exists checks for a record on the (student, course, semester, examType)
// tuple; the unique index is the authoritative backstop.
func (r *MarksRepository) Exists(ctx context.Context, studentID, courseID string, semester int, examType models.ExamType) (bool, error) {
	const query = `SELECT 1 FROM marks WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND exam_type = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, semester, examType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check marks: %w", err)
	}
	return true, nil
}

// Create inserts a marks record and assigns its ID.
func (r *MarksRepository) Create(ctx context.Context, marks *models.Marks) error {
	if marks.ID == "" {
		marks.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	marks.CreatedAt = now
	marks.UpdatedAt = now
	marks.Active = true

	const query = `INSERT INTO marks (id, student_id, course_id, semester, academic_year, exam_type, max_marks, marks_obtained, percentage, grade, remarks, entered_by, active, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :semester, :academic_year, :exam_type, :max_marks, :marks_obtained, :percentage, :grade, :remarks, :entered_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, marks); err != nil {
		return fmt.Errorf("create marks: %w", err)
	}
	return nil
}

// Update persists the obtained marks along with the rederived percentage
// and grade.
func (r *MarksRepository) Update(ctx context.Context, marks *models.Marks) error {
	marks.UpdatedAt = time.Now().UTC()
	const query = `UPDATE marks SET marks_obtained = :marks_obtained, percentage = :percentage, grade = :grade,
        remarks = :remarks, updated_at = :updated_at WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, marks)
	return err
}

// List returns marks filtered by the provided criteria.
func (r *MarksRepository) List(ctx context.Context, filter models.MarksFilter) ([]models.MarksDetail, error) {
	conditions := []string{"m.active = TRUE"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("m.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("m.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("m.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.ExamType != "" {
		conditions = append(conditions, fmt.Sprintf("m.exam_type = $%d", len(args)+1))
		args = append(args, filter.ExamType)
	}

	query := fmt.Sprintf(`SELECT m.id, m.student_id, m.course_id, m.semester, m.academic_year, m.exam_type,
        m.max_marks, m.marks_obtained, m.percentage, m.grade, m.remarks, m.entered_by, m.active, m.created_at, m.updated_at,
        s.name AS student_name, s.roll_number AS student_roll_number,
        c.code AS course_code, c.title AS course_title
        FROM marks m
        LEFT JOIN students s ON s.id = m.student_id
        LEFT JOIN courses c ON c.id = m.course_id
        WHERE %s ORDER BY m.semester DESC, m.exam_type ASC`, strings.Join(conditions, " AND "))

	var marks []models.MarksDetail
	if err := r.db.SelectContext(ctx, &marks, query, args...); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// Deactivate soft-deletes a marks record.
func (r *MarksRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE marks SET active = FALSE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

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

// AssignmentRepository handles persistence of assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, title, description, course_id, semester, max_marks, due_date, allow_late_submission, late_submission_deadline, instructions, created_by, active, created_at`

const submissionColumns = `id, assignment_id, student_id, submitted_at, text_content, status, marks, feedback, graded_by, graded_at`

// FindByID returns an assignment by ID, without submissions.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1`, assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindWithSubmissions returns an assignment together with all submissions.
func (r *AssignmentRepository) FindWithSubmissions(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at ASC`, submissionColumns)
	if err := r.db.SelectContext(ctx, &assignment.Submissions, query, id); err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	return assignment, nil
}

// List returns assignments filtered by the provided criteria, due soonest
// last for admins and soonest first for student views.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter, dueAscending bool) ([]models.Assignment, error) {
	conditions := []string{"active = TRUE"}
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if len(filter.CourseIDs) > 0 {
		placeholders := make([]string, len(filter.CourseIDs))
		for i, id := range filter.CourseIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("course_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	order := "DESC"
	if dueAscending {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE %s ORDER BY due_date %s`,
		assignmentColumns, strings.Join(conditions, " AND "), order)

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts an assignment and assigns its ID.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.CreatedAt = time.Now().UTC()
	assignment.Active = true

	const query = `INSERT INTO assignments (id, title, description, course_id, semester, max_marks, due_date, allow_late_submission, late_submission_deadline, instructions, created_by, active, created_at)
        VALUES (:id, :title, :description, :course_id, :semester, :max_marks, :due_date, :allow_late_submission, :late_submission_deadline, :instructions, :created_by, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update rewrites the mutable assignment fields.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	const query = `UPDATE assignments SET title = :title, description = :description, max_marks = :max_marks,
        due_date = :due_date, allow_late_submission = :allow_late_submission,
        late_submission_deadline = :late_submission_deadline, instructions = :instructions
        WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, assignment)
	return err
}

// Deactivate soft-deletes an assignment.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET active = FALSE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// FindSubmission returns a student's submission for an assignment, if any.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindSubmissionByID returns a submission within an assignment.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, assignmentID, submissionID string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 AND id = $2`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, submissionID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissionsByStudent returns the student's submissions across the
// given assignments, keyed by assignment ID.
func (r *AssignmentRepository) ListSubmissionsByStudent(ctx context.Context, studentID string, assignmentIDs []string) (map[string]models.Submission, error) {
	result := make(map[string]models.Submission, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM submissions WHERE student_id = ? AND assignment_id IN (?)`, submissionColumns), studentID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("build submissions query: %w", err)
	}
	query = r.db.Rebind(query)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return result, nil
		}
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	for _, submission := range submissions {
		result[submission.AssignmentID] = submission
	}
	return result, nil
}

// CreateSubmission appends a submission; the unique index on
// (assignment_id, student_id) is the authoritative double-submit guard.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}

	const query = `INSERT INTO submissions (id, assignment_id, student_id, submitted_at, text_content, status, marks, feedback, graded_by, graded_at)
        VALUES (:id, :assignment_id, :student_id, :submitted_at, :text_content, :status, :marks, :feedback, :graded_by, :graded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// UpdateSubmission persists grading state.
func (r *AssignmentRepository) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	const query = `UPDATE submissions SET status = :status, marks = :marks, feedback = :feedback,
        graded_by = :graded_by, graded_at = :graded_at WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, submission)
	return err
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/campus-api/internal/models"
)

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, name, email, password_hash, phone, roll_number, semester, department, avatar, active, created_at`

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEmail returns a student by email.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE email = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmailOrRoll reports whether a student already uses the email or
// roll number.
func (r *StudentRepository) ExistsByEmailOrRoll(ctx context.Context, email, rollNumber string) (bool, bool, error) {
	const query = `SELECT email, roll_number FROM students WHERE email = $1 OR roll_number = $2`
	rows, err := r.db.QueryxContext(ctx, query, strings.ToLower(email), rollNumber)
	if err != nil {
		return false, false, fmt.Errorf("check student uniqueness: %w", err)
	}
	defer rows.Close()

	var emailTaken, rollTaken bool
	for rows.Next() {
		var gotEmail, gotRoll string
		if err := rows.Scan(&gotEmail, &gotRoll); err != nil {
			return false, false, err
		}
		if gotEmail == strings.ToLower(email) {
			emailTaken = true
		}
		if gotRoll == rollNumber {
			rollTaken = true
		}
	}
	return emailTaken, rollTaken, rows.Err()
}

// Create inserts a student and assigns its ID.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.Email = strings.ToLower(student.Email)
	student.CreatedAt = time.Now().UTC()
	student.Active = true

	const query = `INSERT INTO students (id, name, email, password_hash, phone, roll_number, semester, department, avatar, active, created_at)
        VALUES (:id, :name, :email, :password_hash, :phone, :roll_number, :semester, :department, :avatar, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateProfile updates the mutable profile fields.
func (r *StudentRepository) UpdateProfile(ctx context.Context, id, name, phone, avatar string) error {
	const query = `UPDATE students SET name = $2, phone = $3, avatar = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, name, phone, avatar)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE students SET password_hash = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, passwordHash)
	return err
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT %s FROM students%s ORDER BY roll_number ASC LIMIT %d OFFSET %d`,
		studentColumns, clause, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Deactivate soft-deletes a student account.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

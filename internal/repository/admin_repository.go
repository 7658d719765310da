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

// AdminRepository handles persistence of admin accounts.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, username, email, password_hash, name, role, active, last_login_at, created_at`

// FindByID returns an admin by ID.
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE id = $1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		return nil, err
	}
	return &admin, nil
}

// FindByUsername returns an admin by username.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE username = $1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, username); err != nil {
		return nil, err
	}
	return &admin, nil
}

// ExistsByEmailOrUsername reports whether the email or username is taken.
func (r *AdminRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, bool, error) {
	const query = `SELECT email, username FROM admins WHERE email = $1 OR username = $2`
	rows, err := r.db.QueryxContext(ctx, query, strings.ToLower(email), username)
	if err != nil {
		return false, false, fmt.Errorf("check admin uniqueness: %w", err)
	}
	defer rows.Close()

	var emailTaken, usernameTaken bool
	for rows.Next() {
		var gotEmail, gotUsername string
		if err := rows.Scan(&gotEmail, &gotUsername); err != nil {
			return false, false, err
		}
		if gotEmail == strings.ToLower(email) {
			emailTaken = true
		}
		if gotUsername == username {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, rows.Err()
}

// Count returns the number of admin accounts. The first-ever admin is
// promoted to superadmin by the auth service based on this count.
func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admins`); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// Create inserts an admin and assigns its ID.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	admin.Email = strings.ToLower(admin.Email)
	admin.CreatedAt = time.Now().UTC()
	admin.Active = true

	const query = `INSERT INTO admins (id, username, email, password_hash, name, role, active, created_at)
        VALUES (:id, :username, :email, :password_hash, :name, :role, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the last successful login.
func (r *AdminRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE admins SET last_login_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, ts)
	return err
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/pkg/config"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{students: make(map[string]*models.Student)}
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (f *fakeStudentRepo) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	for _, s := range f.students {
		if s.Email == email {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) ExistsByEmailOrRoll(_ context.Context, email, rollNumber string) (bool, bool, error) {
	var emailTaken, rollTaken bool
	for _, s := range f.students {
		if s.Email == email {
			emailTaken = true
		}
		if s.RollNumber == rollNumber {
			rollTaken = true
		}
	}
	return emailTaken, rollTaken, nil
}

func (f *fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	student.ID = fmt.Sprintf("student-%d", len(f.students)+1)
	student.Active = true
	f.students[student.ID] = student
	return nil
}

func (f *fakeStudentRepo) UpdateProfile(_ context.Context, id, name, phone, avatar string) error {
	student, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	student.Name = name
	student.Phone = phone
	student.Avatar = avatar
	return nil
}

func (f *fakeStudentRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	student, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	student.PasswordHash = passwordHash
	return nil
}

type fakeAdminRepo struct {
	admins map[string]*models.Admin
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{admins: make(map[string]*models.Admin)}
}

func (f *fakeAdminRepo) FindByID(_ context.Context, id string) (*models.Admin, error) {
	admin, ok := f.admins[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return admin, nil
}

func (f *fakeAdminRepo) FindByUsername(_ context.Context, username string) (*models.Admin, error) {
	for _, a := range f.admins {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAdminRepo) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, bool, error) {
	var emailTaken, usernameTaken bool
	for _, a := range f.admins {
		if a.Email == email {
			emailTaken = true
		}
		if a.Username == username {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, nil
}

func (f *fakeAdminRepo) Count(_ context.Context) (int, error) {
	return len(f.admins), nil
}

func (f *fakeAdminRepo) Create(_ context.Context, admin *models.Admin) error {
	admin.ID = fmt.Sprintf("admin-%d", len(f.admins)+1)
	admin.Active = true
	f.admins[admin.ID] = admin
	return nil
}

func (f *fakeAdminRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	admin, ok := f.admins[id]
	if !ok {
		return sql.ErrNoRows
	}
	admin.LastLoginAt = &ts
	return nil
}

type fakeTokenStore struct {
	blacklisted map[string]bool
	refresh     map[string]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		blacklisted: make(map[string]bool),
		refresh:     make(map[string]string),
	}
}

func (f *fakeTokenStore) Blacklist(_ context.Context, jti string, _ time.Duration) error {
	f.blacklisted[jti] = true
	return nil
}

func (f *fakeTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.blacklisted[jti], nil
}

func (f *fakeTokenStore) SaveRefreshToken(_ context.Context, token, subject string, _ time.Duration) error {
	f.refresh[token] = subject
	return nil
}

func (f *fakeTokenStore) ConsumeRefreshToken(_ context.Context, token string) (string, error) {
	subject, ok := f.refresh[token]
	if !ok {
		return "", redis.Nil
	}
	delete(f.refresh, token)
	return subject, nil
}

func (f *fakeTokenStore) RevokeRefreshToken(_ context.Context, token string) error {
	delete(f.refresh, token)
	return nil
}

func authConfigForTest() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "test-secret",
		AccessTokenExpiry:    15 * time.Minute,
		RefreshTokenExpiry:   24 * time.Hour,
		Issuer:               "campus-api-test",
		AdminRegistrationKey: "let-me-in",
	}
}

func newAuthService(students *fakeStudentRepo, admins *fakeAdminRepo, tokens *fakeTokenStore) *AuthService {
	if students == nil {
		students = newFakeStudentRepo()
	}
	if admins == nil {
		admins = newFakeAdminRepo()
	}
	if tokens == nil {
		tokens = newFakeTokenStore()
	}
	return NewAuthService(students, admins, tokens, nil, nil, authConfigForTest())
}

func seedStudent(repo *fakeStudentRepo, password string) *models.Student {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	student := &models.Student{
		ID:           "student-1",
		Name:         "Asha Rao",
		Email:        "asha@example.edu",
		PasswordHash: string(hash),
		RollNumber:   "CS2026-014",
		Semester:     3,
		Active:       true,
	}
	repo.students[student.ID] = student
	return student
}

func TestRegisterStudent(t *testing.T) {
	students := newFakeStudentRepo()
	tokens := newFakeTokenStore()
	svc := newAuthService(students, nil, tokens)

	student, pair, err := svc.RegisterStudent(context.Background(), RegisterStudentRequest{
		Name:       "Asha Rao",
		Email:      "asha@example.edu",
		Password:   "secret123",
		Phone:      "9876543210",
		RollNumber: "CS2026-014",
		Semester:   3,
		Department: "CSE",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Len(t, tokens.refresh, 1)
}

func TestRegisterStudentDuplicateEmail(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	svc := newAuthService(students, nil, nil)

	_, _, err := svc.RegisterStudent(context.Background(), RegisterStudentRequest{
		Name:       "Another",
		Email:      "asha@example.edu",
		Password:   "secret123",
		Phone:      "9876543210",
		RollNumber: "CS2026-015",
		Semester:   3,
		Department: "CSE",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginStudent(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	svc := newAuthService(students, nil, nil)

	student, pair, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestLoginStudentWrongPassword(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	svc := newAuthService(students, nil, nil)

	_, _, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginStudentInactiveAccount(t *testing.T) {
	students := newFakeStudentRepo()
	student := seedStudent(students, "secret123")
	student.Active = false
	svc := newAuthService(students, nil, nil)

	_, _, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRegisterAdminFirstBecomesSuperAdmin(t *testing.T) {
	admins := newFakeAdminRepo()
	svc := newAuthService(nil, admins, nil)

	first, _, err := svc.RegisterAdmin(context.Background(), RegisterAdminRequest{
		Username:        "dean",
		Email:           "dean@example.edu",
		Password:        "secret123",
		Name:            "Dean",
		RegistrationKey: "let-me-in",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, first.Role)

	second, _, err := svc.RegisterAdmin(context.Background(), RegisterAdminRequest{
		Username:        "clerk",
		Email:           "clerk@example.edu",
		Password:        "secret123",
		Name:            "Clerk",
		RegistrationKey: "let-me-in",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, second.Role)
}

func TestRegisterAdminBadKey(t *testing.T) {
	svc := newAuthService(nil, nil, nil)

	_, _, err := svc.RegisterAdmin(context.Background(), RegisterAdminRequest{
		Username:        "dean",
		Email:           "dean@example.edu",
		Password:        "secret123",
		Name:            "Dean",
		RegistrationKey: "guess",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	tokens := newFakeTokenStore()
	svc := newAuthService(students, nil, tokens)

	_, pair, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	fresh, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	// The consumed token is single use.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc := newAuthService(nil, nil, nil)

	_, err := svc.Refresh(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	tokens := newFakeTokenStore()
	svc := newAuthService(students, nil, tokens)

	_, pair, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)

	require.NoError(t, svc.Logout(context.Background(), claims, pair.RefreshToken))
	assert.True(t, tokens.blacklisted[claims.ID])
	assert.Empty(t, tokens.refresh)

	_, err = svc.ValidateToken(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForgedSignature(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	svc := newAuthService(students, nil, nil)

	_, pair, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	other := NewAuthService(newFakeStudentRepo(), newFakeAdminRepo(), newFakeTokenStore(), nil, nil, config.AuthConfig{
		JWTSecret:          "different-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
	})
	_, err = other.ValidateToken(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangeStudentPassword(t *testing.T) {
	students := newFakeStudentRepo()
	seedStudent(students, "secret123")
	svc := newAuthService(students, nil, nil)

	err := svc.ChangeStudentPassword(context.Background(), "student-1", ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "fresh-secret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangeStudentPassword(context.Background(), "student-1", ChangePasswordRequest{
		CurrentPassword: "secret123",
		NewPassword:     "fresh-secret",
	}))

	_, _, err = svc.LoginStudent(context.Background(), LoginStudentRequest{
		Email:    "asha@example.edu",
		Password: "fresh-secret",
	})
	require.NoError(t, err)
}

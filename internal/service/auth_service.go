package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/campus-api/internal/models"
	"github.com/campushub/campus-api/pkg/config"
	appErrors "github.com/campushub/campus-api/pkg/errors"
)

type authStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	ExistsByEmailOrRoll(ctx context.Context, email, rollNumber string) (bool, bool, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateProfile(ctx context.Context, id, name, phone, avatar string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type authAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, bool, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, admin *models.Admin) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type tokenStore interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	SaveRefreshToken(ctx context.Context, token, subject string, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, token string) (string, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// RegisterStudentRequest describes student self-registration.
type RegisterStudentRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Phone      string `json:"phone" validate:"required"`
	RollNumber string `json:"rollNumber" validate:"required"`
	Semester   int    `json:"semester" validate:"required,min=1,max=8"`
	Department string `json:"department" validate:"required"`
}

// LoginStudentRequest describes student login.
type LoginStudentRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterAdminRequest describes admin onboarding, gated by a shared
// registration key.
type RegisterAdminRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	Name            string `json:"name" validate:"required"`
	RegistrationKey string `json:"registrationKey" validate:"required"`
}

// LoginAdminRequest describes admin login.
type LoginAdminRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the student-editable profile fields.
type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone" validate:"required"`
	Avatar string `json:"avatar"`
}

// ChangePasswordRequest rotates a student's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// AuthService provides authentication and account use cases for both
// portals.
type AuthService struct {
	students  authStudentRepository
	admins    authAdminRepository
	tokens    tokenStore
	validator *validator.Validate
	logger    *zap.Logger
	config    config.AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(students authStudentRepository, admins authAdminRepository, tokens tokenStore, validate *validator.Validate, logger *zap.Logger, cfg config.AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{students: students, admins: admins, tokens: tokens, validator: validate, logger: logger, config: cfg}
}

// RegisterStudent creates a student account and issues tokens.
func (s *AuthService) RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*models.Student, *models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	emailTaken, rollTaken, err := s.students.ExistsByEmailOrRoll(ctx, req.Email, req.RollNumber)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate registration")
	}
	if emailTaken {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if rollTaken {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "roll number already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	student := &models.Student{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		RollNumber:   req.RollNumber,
		Semester:     req.Semester,
		Department:   req.Department,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "registration failed")
	}

	pair, err := s.issueTokens(ctx, student.ID, models.RoleStudent)
	if err != nil {
		return nil, nil, err
	}
	return student, pair, nil
}

// LoginStudent authenticates a student and issues tokens.
func (s *AuthService) LoginStudent(ctx context.Context, req LoginStudentRequest) (*models.Student, *models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide email and password")
	}

	student, err := s.students.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrInvalidCredentials
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "login failed")
	}
	if !student.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is deactivated, please contact admin")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, student.ID, models.RoleStudent)
	if err != nil {
		return nil, nil, err
	}
	return student, pair, nil
}

// RegisterAdmin creates an admin account. The very first admin is promoted
// to superadmin.
func (s *AuthService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*models.Admin, *models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if s.config.AdminRegistrationKey == "" || req.RegistrationKey != s.config.AdminRegistrationKey {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid admin registration key")
	}

	emailTaken, usernameTaken, err := s.admins.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate registration")
	}
	if emailTaken {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if usernameTaken {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	}

	count, err := s.admins.Count(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admins")
	}
	role := models.RoleAdmin
	if count == 0 {
		role = models.RoleSuperAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	admin := &models.Admin{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         role,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "registration failed")
	}

	pair, err := s.issueTokens(ctx, admin.ID, admin.Role)
	if err != nil {
		return nil, nil, err
	}
	return admin, pair, nil
}

// LoginAdmin authenticates an admin, stamps last login and issues tokens.
func (s *AuthService) LoginAdmin(ctx context.Context, req LoginAdminRequest) (*models.Admin, *models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide username and password")
	}

	admin, err := s.admins.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrInvalidCredentials
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "login failed")
	}
	if !admin.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is deactivated, please contact super admin")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	if err := s.admins.UpdateLastLogin(ctx, admin.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	pair, err := s.issueTokens(ctx, admin.ID, admin.Role)
	if err != nil {
		return nil, nil, err
	}
	return admin, pair, nil
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required")
	}

	subject, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate refresh token")
	}

	role, userID, ok := parseSubject(subject)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "malformed refresh token subject")
	}

	// Re-check the account before reissuing.
	if role == models.RoleStudent {
		student, err := s.students.FindByID(ctx, userID)
		if err != nil || !student.Active {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated account is unavailable")
		}
	} else {
		admin, err := s.admins.FindByID(ctx, userID)
		if err != nil || !admin.Active {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated account is unavailable")
		}
		role = admin.Role
	}

	return s.issueTokens(ctx, userID, role)
}

// Logout revokes the presented access token for its remaining lifetime and
// deletes the refresh token.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, refreshToken string) error {
	if claims != nil && claims.ID != "" && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.tokens.Blacklist(ctx, claims.ID, ttl); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
		}
	}
	if refreshToken != "" {
		if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
			s.logger.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	return nil
}

// ValidateToken parses an access token, verifies its signature and rejects
// blacklisted tokens.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if claims.ID != "" {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token state")
		}
		if revoked {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has been revoked")
		}
	}

	return claims, nil
}

// CurrentStudent loads the authenticated student's account.
func (s *AuthService) CurrentStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// CurrentAdmin loads the authenticated admin's account.
func (s *AuthService) CurrentAdmin(ctx context.Context, id string) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admin not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin")
	}
	return admin, nil
}

// UpdateStudentProfile updates the student-editable profile fields.
func (s *AuthService) UpdateStudentProfile(ctx context.Context, studentID string, req UpdateProfileRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if err := s.students.UpdateProfile(ctx, studentID, req.Name, req.Phone, req.Avatar); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return s.CurrentStudent(ctx, studentID)
}

// ChangeStudentPassword verifies and rotates a student's password.
func (s *AuthService) ChangeStudentPassword(ctx context.Context, studentID string, req ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide both current and new password")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.students.UpdatePassword(ctx, studentID, string(hash)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change password")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, userID string, role models.Role) (*models.TokenPair, error) {
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenExpiry)),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	refreshToken, err := generateOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	if err := s.tokens.SaveRefreshToken(ctx, refreshToken, formatSubject(role, userID), s.config.RefreshTokenExpiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
	}, nil
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func formatSubject(role models.Role, userID string) string {
	return string(role) + ":" + userID
}

func parseSubject(subject string) (models.Role, string, bool) {
	parts := strings.SplitN(subject, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return models.Role(parts[0]), parts[1], true
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminUsername      = "admin"
	genericAuthError   = "Invalid credentials"
	initialPasswordLen = 8
)

// Claims are the identity carried by an admin surface token
type Claims struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// RequestMeta identifies the origin of a request for the audit trail
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// IdentityService authenticates admin surface users and manages accounts
type IdentityService struct {
	users     UserRepository
	audit     *AuditService
	jwtSecret []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(users UserRepository, audit *AuditService, jwtSecret string, expiry time.Duration) *IdentityService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &IdentityService{
		users:     users,
		audit:     audit,
		jwtSecret: []byte(jwtSecret),
		expiry:    expiry,
		now:       time.Now,
	}
}

func (s *IdentityService) record(ctx context.Context, meta RequestMeta, userID, action string, details map[string]any) {
	s.audit.Record(ctx, AuditEvent{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}

// GenerateJWT signs a token for user
func (s *IdentityService) GenerateJWT(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.expiry).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (s *IdentityService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &Error{Kind: KindUnauthorized, Message: "Token expired", Err: err}
		}
		return nil, &Error{Kind: KindUnauthorized, Message: "Invalid token", Err: err}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, unauthorized("Invalid token")
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if id == "" || !models.ValidRole(models.Role(role)) {
		return nil, unauthorized("Invalid token")
	}
	return &Claims{UserID: id, Username: username, Role: models.Role(role)}, nil
}

// Login checks credentials and issues a token. Unknown users, inactive
// users, and wrong passwords get the same answer.
func (s *IdentityService) Login(ctx context.Context, username, password string, meta RequestMeta) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validation("", "Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storageFailure("load user", err)
		}
		s.record(ctx, meta, "", ActionLoginFailed, map[string]any{"username": username, "reason": "User not found"})
		return nil, unauthorized(genericAuthError)
	}
	if !user.Active {
		s.record(ctx, meta, user.ID, ActionLoginFailed, map[string]any{"username": username, "reason": "Inactive account"})
		return nil, unauthorized(genericAuthError)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.record(ctx, meta, user.ID, ActionLoginFailed, map[string]any{"username": username, "reason": "Invalid password"})
		return nil, unauthorized(genericAuthError)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update last login")
	}
	user.LastLogin = &now

	token, err := s.GenerateJWT(user)
	if err != nil {
		return nil, storageFailure("issue token", err)
	}
	s.record(ctx, meta, user.ID, ActionLoginSuccess, map[string]any{"username": user.Username})
	return &LoginResult{Token: token, User: user}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// SetupAdmin creates the initial admin account with a random password,
// which is returned once. It fails when an admin already exists.
func (s *IdentityService) SetupAdmin(ctx context.Context, meta RequestMeta) (*models.User, string, error) {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, "", storageFailure("count admins", err)
	}
	if admins > 0 {
		return nil, "", invalidState("Admin user already exists")
	}

	buf := make([]byte, initialPasswordLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", storageFailure("generate password", err)
	}
	password := hex.EncodeToString(buf)

	user, err := s.createUser(ctx, adminUsername, password, models.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("user_id", user.ID).Msg("Admin user created")
	s.record(ctx, meta, user.ID, ActionAdminCreated, map[string]any{"username": user.Username})
	return user, password, nil
}

func (s *IdentityService) createUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, storageFailure("hash password", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, validation("username", "Username already exists")
		}
		return nil, storageFailure("create user", err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *IdentityService) ChangePassword(ctx context.Context, userID, current, next string, meta RequestMeta) error {
	if current == "" || next == "" {
		return validation("", "Current password and new password are required")
	}
	if err := models.ValidatePassword("newPassword", next); err != nil {
		return invalidInput(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupFailure("user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		s.record(ctx, meta, userID, ActionPasswordChangeFailed, map[string]any{"reason": "Invalid current password"})
		return unauthorized("Current password is incorrect")
	}

	hash, err := hashPassword(next)
	if err != nil {
		return storageFailure("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return lookupFailure("user", err)
	}
	s.record(ctx, meta, userID, ActionPasswordChanged, map[string]any{"username": user.Username})
	return nil
}

// Logout records the end of a session
func (s *IdentityService) Logout(ctx context.Context, claims *Claims, meta RequestMeta) {
	s.record(ctx, meta, claims.UserID, ActionLogout, map[string]any{"username": claims.Username})
}

// ListUsers returns every account
func (s *IdentityService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storageFailure("list users", err)
	}
	return users, nil
}

// CreateUser creates an account on behalf of an admin
func (s *IdentityService) CreateUser(ctx context.Context, actor *Claims, username, password string, role models.Role, meta RequestMeta) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := models.ValidateCredentials(username, password); err != nil {
		return nil, invalidInput(err)
	}
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, validation("role", "Invalid role")
	}

	user, err := s.createUser(ctx, username, password, role)
	if err != nil {
		return nil, err
	}
	s.record(ctx, meta, actor.UserID, ActionCreatedUser, map[string]any{
		"targetResource": "User",
		"newUserId":      user.ID,
		"newUsername":    user.Username,
		"role":           string(role),
	})
	return user, nil
}

// ToggleUserStatus flips a user's active flag. Admins cannot deactivate
// themselves.
func (s *IdentityService) ToggleUserStatus(ctx context.Context, actor *Claims, userID string, meta RequestMeta) (*models.User, error) {
	if userID == actor.UserID {
		return nil, validation("", "You cannot deactivate your own account")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupFailure("user", err)
	}
	user.Active = !user.Active
	if err := s.users.SetActive(ctx, userID, user.Active); err != nil {
		return nil, lookupFailure("user", err)
	}
	s.record(ctx, meta, actor.UserID, ActionToggledUser, map[string]any{
		"targetResource": "User",
		"targetUserId":   userID,
		"active":         user.Active,
	})
	return user, nil
}

// DeleteUser removes an account. Self-deletion and deleting the last admin
// are refused.
func (s *IdentityService) DeleteUser(ctx context.Context, actor *Claims, userID string, meta RequestMeta) error {
	if userID == actor.UserID {
		return validation("", "You cannot delete your own account")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupFailure("user", err)
	}
	if user.Role == models.RoleAdmin {
		admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return storageFailure("count admins", err)
		}
		if admins <= 1 {
			return validation("", "The last admin account cannot be deleted")
		}
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return lookupFailure("user", err)
	}
	s.record(ctx, meta, actor.UserID, ActionDeletedUser, map[string]any{
		"targetResource":  "User",
		"deletedUserId":   userID,
		"deletedUsername": user.Username,
	})
	return nil
}

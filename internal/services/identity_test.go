package services

import (
	"context"
	"testing"
	"time"

	"memevault-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = RequestMeta{IPAddress: "127.0.0.1", UserAgent: "test"}

func setupAdmin(t *testing.T, env *testEnv) (*models.User, string) {
	t.Helper()
	admin, password, err := env.identity.SetupAdmin(context.Background(), meta)
	require.NoError(t, err)
	return admin, password
}

func TestSetupAdminOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	admin, password := setupAdmin(t, env)
	assert.Equal(t, "admin", admin.Username)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Len(t, password, 16)

	_, _, err := env.identity.SetupAdmin(context.Background(), meta)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoginAndValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, password := setupAdmin(t, env)

	result, err := env.identity.Login(ctx, "admin", password, meta)
	require.NoError(t, err)
	require.NotNil(t, result.User.LastLogin)

	claims, err := env.identity.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, &Claims{UserID: admin.ID, Username: "admin", Role: models.RoleAdmin}, claims)

	_, err = env.identity.Login(ctx, "admin", "wrong-password", meta)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", AsError(err).Message)

	_, err = env.identity.Login(ctx, "nobody", password, meta)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", AsError(err).Message)

	_, err = env.identity.Login(ctx, "", "", meta)
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := env.audit.Stats(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Contains(t, stats, ActionCount{Action: ActionLoginFailed, Count: 2})
	assert.Contains(t, stats, ActionCount{Action: ActionLoginSuccess, Count: 1})
}

func TestValidateTokenRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := setupAdmin(t, env)

	_, err := env.identity.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := NewIdentityService(env.db.Users(), env.audit, "other-secret", time.Hour)
	token, err := other.GenerateJWT(admin)
	require.NoError(t, err)
	_, err = env.identity.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	token, err = env.identity.GenerateJWT(admin)
	require.NoError(t, err)
	env.identity.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = env.identity.ValidateToken(token)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Token expired", AsError(err).Message)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": admin.ID, "role": "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = env.identity.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestInactiveUserCannotLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := setupAdmin(t, env)
	actor := &Claims{UserID: admin.ID, Role: models.RoleAdmin}

	user, err := env.identity.CreateUser(ctx, actor, "moderator", "hunter22!", models.RoleUser, meta)
	require.NoError(t, err)
	toggled, err := env.identity.ToggleUserStatus(ctx, actor, user.ID, meta)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	_, err = env.identity.Login(ctx, "moderator", "hunter22!", meta)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, password := setupAdmin(t, env)

	err := env.identity.ChangePassword(ctx, admin.ID, "nope", "new-password", meta)
	assert.ErrorIs(t, err, ErrUnauthorized)
	err = env.identity.ChangePassword(ctx, admin.ID, password, "short", meta)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.identity.ChangePassword(ctx, admin.ID, password, "new-password", meta))
	_, err = env.identity.Login(ctx, "admin", "new-password", meta)
	assert.NoError(t, err)
}

func TestUserManagementGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := setupAdmin(t, env)
	actor := &Claims{UserID: admin.ID, Role: models.RoleAdmin}

	_, err := env.identity.CreateUser(ctx, actor, "abc", "longenough", models.RoleUser, meta)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.identity.CreateUser(ctx, actor, "admin", "longenough", models.RoleUser, meta)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.identity.CreateUser(ctx, actor, "someone", "longenough", "root", meta)
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, env.identity.DeleteUser(ctx, actor, admin.ID, meta), ErrValidation)
	_, err = env.identity.ToggleUserStatus(ctx, actor, admin.ID, meta)
	assert.ErrorIs(t, err, ErrValidation)

	second, err := env.identity.CreateUser(ctx, actor, "second-admin", "longenough", models.RoleAdmin, meta)
	require.NoError(t, err)
	other := &Claims{UserID: second.ID, Role: models.RoleAdmin}
	require.NoError(t, env.identity.DeleteUser(ctx, other, admin.ID, meta))

	// second is now the last admin; nobody else can remove it
	third, err := env.identity.CreateUser(ctx, other, "third", "longenough", models.RoleUser, meta)
	require.NoError(t, err)
	err = env.identity.DeleteUser(ctx, &Claims{UserID: third.ID}, second.ID, meta)
	assert.ErrorIs(t, err, ErrValidation)

	users, err := env.identity.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, env.identity.DeleteUser(ctx, other, "missing", meta), ErrNotFound)
}

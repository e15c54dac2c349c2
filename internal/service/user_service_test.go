package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noteshare/internal/apperr"
	"noteshare/internal/domain"
	"noteshare/internal/repository/memory"
)

func newTestUserService(t *testing.T) (UserService, *memory.UserRepository) {
	t.Helper()
	repo := memory.NewUserRepository()
	return NewUserService(repo, true), repo
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	user, err := svc.Register(ctx, " alice ", "Alice@Example.com", "secret1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.PasswordHash, "returned user must not expose the hash")

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	_, err := svc.Register(ctx, "alice", "a@x.io", "secret1", domain.RoleUser)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice2", "a@x.io", "secret1", domain.RoleUser)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Register(ctx, "alice", "other@x.io", "secret1", domain.RoleUser)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.EqualError(t, err, "user already exists with this email or username")
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     domain.Role
		field    string
	}{
		{"short username", "al", "a@x.io", "secret1", "", "username"},
		{"long username", strings.Repeat("a", 51), "a@x.io", "secret1", "", "username"},
		{"bad email", "alice", "not-an-email", "secret1", "", "email"},
		{"display name email", "alice", "Alice <a@x.io>", "secret1", "", "email"},
		{"short password", "alice", "a@x.io", "12345", "", "password"},
		{"long password", "alice", "a@x.io", strings.Repeat("p", 73), "", "password"},
		{"unknown role", "alice", "a@x.io", "secret1", domain.Role("root"), "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password, tt.role)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			require.NotEmpty(t, appErr.Fields)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)
		})
	}
}

func TestRegister_AdminSignupDisabled(t *testing.T) {
	svc := NewUserService(memory.NewUserRepository(), false)

	_, err := svc.Register(context.Background(), "root", "root@x.io", "secret1", domain.RoleAdmin)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	registered, err := svc.Register(ctx, "alice", "a@x.io", "secret1", "")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "A@X.io", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.Authenticate(ctx, "a@x.io", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@x.io", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "alice", "a@x.io", "secret1", "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong", "secret2")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	err = svc.ChangePassword(ctx, user.ID, "secret1", "123")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secret1", "secret2"))

	_, err = svc.Authenticate(ctx, "a@x.io", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "a@x.io", "secret2")
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, "missing", "secret2", "secret3")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetByIDAndListUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	alice, err := svc.Register(ctx, "alice", "a@x.io", "secret1", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "b@x.io", "secret1", domain.RoleAdmin)
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.GetByID(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

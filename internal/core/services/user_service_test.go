package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := func() *CreateUserInput {
		return &CreateUserInput{Username: "  nyasha ", Password: "s3cure-pass", Role: string(domain.RoleCatchmentManager)}
	}

	_, err := f.users.CreateUser(ctx, f.super, input())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	user, err := f.users.CreateUser(ctx, f.admin, input())
	require.NoError(t, err)
	assert.Equal(t, "nyasha", user.Username)
	assert.Equal(t, string(domain.RoleCatchmentManager), user.Role)
	assert.True(t, user.IsActive)

	stored, err := f.store.Users.GetByUsername(ctx, "nyasha")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cure-pass", stored.Password)
	assert.True(t, f.hasher.Verify("s3cure-pass", stored.Password))

	_, err = f.users.CreateUser(ctx, f.ict, input())
	assert.ErrorIs(t, err, domain.ErrValidation, "duplicate username")

	bad := input()
	bad.Username = "someone"
	bad.Role = "Director"
	_, err = f.users.CreateUser(ctx, f.admin, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad = input()
	bad.Username = "short"
	bad.Password = "1234"
	_, err = f.users.CreateUser(ctx, f.admin, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestToggleUserActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.ToggleUserActive(ctx, f.admin, f.admin.UserID)
	assert.ErrorIs(t, err, domain.ErrValidation, "cannot deactivate yourself")

	_, err = f.users.ToggleUserActive(ctx, f.officer, f.chair.UserID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	user, err := f.users.ToggleUserActive(ctx, f.admin, f.officer.UserID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	user, err = f.users.ToggleUserActive(ctx, f.ict, f.officer.UserID)
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, err = f.users.ToggleUserActive(ctx, f.admin, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndGetUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.users.ListUsers(ctx, f.admin, &ListUsersInput{Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 7, out.Total)
	assert.Len(t, out.Users, 3)
	assert.Equal(t, 3, out.TotalPages)

	out, err = f.users.ListUsers(ctx, f.admin, &ListUsersInput{Role: string(domain.RoleICT)})
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "ict", out.Users[0].Username)

	_, err = f.users.ListUsers(ctx, f.chair, &ListUsersInput{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	me, err := f.users.GetUser(ctx, f.chair, f.chair.UserID)
	require.NoError(t, err)
	assert.Equal(t, "chair", me.Username)

	_, err = f.users.GetUser(ctx, f.chair, f.officer.UserID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.users.ChangePassword(ctx, f.officer, &ChangePasswordInput{OldPassword: "wrong-one", NewPassword: "new-password"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, f.users.ChangePassword(ctx, f.officer, &ChangePasswordInput{OldPassword: "password123", NewPassword: "new-password"}))

	stored, err := f.store.Users.GetByID(ctx, f.officer.UserID)
	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("new-password", stored.Password))
}

// unseenUsernames answers the pre-insert check as if no account existed yet
type unseenUsernames struct {
	repositories.UserRepository
}

func (unseenUsernames) ExistsByUsername(context.Context, string) (bool, error) {
	return false, nil
}

func TestCreateUserDuplicateInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(unseenUsernames{f.store.Users}, f.hasher, zerolog.Nop())

	input := &CreateUserInput{Username: "officer", Password: "s3cure-pass", Role: string(domain.RolePermittingOfficer)}
	_, err := users.CreateUser(ctx, f.admin, input)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "username", verr.Field)
	assert.NotErrorIs(t, err, domain.ErrStorageFailure)
}

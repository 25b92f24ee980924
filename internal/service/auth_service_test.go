package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:    "Priya@Example.com",
		Password: "secret1",
		Name:     "Priya",
		Phone:    "9876543210",
		Role:     domain.RoleCustomer,
		Location: adyar,
	}
}

func TestRegister_OpensSession(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	session, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "priya@example.com", session.User.Email)
	assert.Equal(t, domain.RoleCustomer, session.User.Role)

	resolved, err := env.auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, resolved.User.ID)
	assert.Equal(t, adyar, resolved.User.Location)
}

func TestRegister_Validation(t *testing.T) {
	env := setupEnv(t)

	tests := map[string]func(r *RegisterRequest){
		"bad email":        func(r *RegisterRequest) { r.Email = "not-an-email" },
		"short password":   func(r *RegisterRequest) { r.Password = "12345" },
		"missing name":     func(r *RegisterRequest) { r.Name = " " },
		"unknown role":     func(r *RegisterRequest) { r.Role = "admin" },
		"bad location":     func(r *RegisterRequest) { r.Taluk = "Melur" },
		"missing location": func(r *RegisterRequest) { r.Location = domain.Location{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := validRegistration()
			mutate(&req)
			_, err := env.auth.Register(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	dup := validRegistration()
	dup.Email = "priya@example.com"
	_, err = env.auth.Register(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLogin(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	session, err := env.auth.Login(ctx, "priya@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Priya", session.User.Name)

	_, err = env.auth.Login(ctx, "priya@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.auth.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	session, err := env.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, session))

	_, err = env.auth.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// a fresh login gets a new, valid token
	again, err := env.auth.Login(ctx, "priya@example.com", "secret1")
	require.NoError(t, err)
	_, err = env.auth.Authenticate(ctx, again.Token)
	assert.NoError(t, err)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	env := setupEnv(t)

	_, err := env.auth.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orderbuddy/orderbuddy/internal/auth"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/repository"
)

type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Role     domain.Role `json:"user_type"`
	domain.Location
}

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenIssuer
	revoked   auth.RevocationList
	locations *location.Hierarchy
	log       *slog.Logger
	now       func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenIssuer, revoked auth.RevocationList,
	locations *location.Hierarchy, log *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		revoked:   revoked,
		locations: locations,
		log:       log.With("component", "auth_service"),
		now:       time.Now,
	}
}

// Register creates the user and opens a session for it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", auth.MinPasswordLength)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.Validationf("name is required")
	}
	if !req.Role.Valid() {
		return nil, domain.Validationf("user_type must be customer, shop_owner or delivery_person")
	}
	if err := s.locations.Validate(req.Location); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		Location:     req.Location,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return s.openSession(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", domain.ErrUnauthorized)
	}
	return s.openSession(u)
}

// Logout revokes the session token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if err := s.revoked.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log.InfoContext(ctx, "user logged out", "user_id", session.User.ID)
	return nil
}

// Authenticate resolves a bearer token to a session with the user's current
// record.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}

	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", domain.ErrUnauthorized)
	}

	return &domain.Session{
		User:      *u,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) openSession(u *domain.User) (*domain.Session, error) {
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		User:      *u,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", domain.Validationf("invalid email %q", email)
	}
	return strings.ToLower(addr.Address), nil
}

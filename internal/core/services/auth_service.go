package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/config"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/jwt"
	"manyame-permits/internal/pkg/password"
)

// Auth errors
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", domain.ErrAuthenticationRequired)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", domain.ErrAuthenticationRequired)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", domain.ErrAuthenticationRequired)
	ErrTokenRevoked       = fmt.Errorf("%w: token revoked", domain.ErrAuthenticationRequired)
	ErrUserInactive       = fmt.Errorf("%w: user account is inactive", domain.ErrPermissionDenied)
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	hasher           PasswordHasher
	tokens           *jwt.Signer
	logger           zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	hasher PasswordHasher,
	jwtCfg config.JWTConfig,
	logger zerolog.Logger,
) *AuthService {
	tokens := jwt.NewSigner(
		jwtCfg.Secret,
		jwtCfg.RefreshSecret,
		time.Duration(jwtCfg.AccessTokenMins)*time.Minute,
		time.Duration(jwtCfg.RefreshTokenDays)*24*time.Hour,
	)
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		hasher:           hasher,
		tokens:           tokens,
		logger:           logger.With().Str("service", "auth").Logger(),
	}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User *models.UserResponse `json:"user"`
	domain.TokenPair
}

// Login authenticates a user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, domain.NewStorageError("load user", err)
	}

	if !s.hasher.Verify(input.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	resp, err := s.issue(ctx, user, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", user.Username).Msg("user logged in")
	return resp, nil
}

// RefreshToken rotates a refresh token: the old one is revoked and a new pair issued
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	storedToken, err := s.refreshTokenRepo.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, domain.NewStorageError("load refresh token", err)
	}
	if storedToken.IsRevoked() {
		return nil, ErrTokenRevoked
	}
	if storedToken.IsExpired() {
		return nil, ErrTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	resp, err := s.issue(ctx, user, storedToken.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("username", user.Username).Msg("token refreshed")
	return resp, nil
}

// Logout revokes the refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken)); err != nil {
		return domain.NewStorageError("revoke refresh token", err)
	}
	return nil
}

// LogoutAll revokes all refresh tokens for a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	n, err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return domain.NewStorageError("revoke refresh tokens", err)
	}
	s.logger.Info().Uint("user_id", userID).Int64("sessions", n).Msg("all sessions revoked")
	return nil
}

// Authenticate resolves an access token to the acting user. Deactivated
// accounts are rejected even while their token is still valid.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Actor, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, domain.NewStorageError("load user", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	role, err := domain.ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: account has unknown role %q", domain.ErrPermissionDenied, user.Role)
	}
	return &domain.Actor{UserID: user.ID, Username: user.Username, Role: role}, nil
}

// issue generates a token pair and stores the hashed refresh token. A non-zero
// replaces is revoked in the same transaction.
func (s *AuthService) issue(ctx context.Context, user *models.User, replaces uint) (*AuthResponse, error) {
	access, err := s.tokens.Access(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.tokens.Refresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	token := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refresh.Token),
		ExpiresAt: refresh.ExpiresAt,
	}
	if replaces == 0 {
		err = s.refreshTokenRepo.Create(ctx, token)
	} else {
		err = s.refreshTokenRepo.Rotate(ctx, replaces, token)
	}
	switch {
	case errors.Is(err, repositories.ErrTokenAlreadyRevoked):
		return nil, ErrTokenRevoked
	case err != nil:
		return nil, domain.NewStorageError("store refresh token", err)
	}

	return &AuthResponse{
		User: user.ToResponse(),
		TokenPair: domain.TokenPair{
			AccessToken:  access.Token,
			RefreshToken: refresh.Token,
			ExpiresAt:    access.ExpiresAt,
		},
	}, nil
}

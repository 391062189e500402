package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository"
	"estate-market-backend/internal/security"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	errInvalidCredentials = apperrors.Unauthenticated("invalid email or password")
	errInvalidRefresh     = apperrors.Unauthenticated("invalid or expired refresh token")
)

type authService struct {
	userRepo    repository.UserRepository
	tokens      security.TokenManager
	revocations repository.TokenRevocationRepository
}

func NewAuthService(userRepo repository.UserRepository, tokens security.TokenManager, revocations repository.TokenRevocationRepository) AuthService {
	return &authService{
		userRepo:    userRepo,
		tokens:      tokens,
		revocations: revocations,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	logger.EnterMethod("AuthService.Register", "email", in.Email, "role", in.Role)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = domain.UserRoleBuyer
	}

	v := apperrors.ValidationErrs()
	if in.Name == "" {
		v.Add("name", "is required")
	}
	if !emailPattern.MatchString(in.Email) {
		v.Add("email", "must be a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		v.Add("password", "must be at least 6 characters long")
	}
	// Admin accounts are provisioned by the seeder only.
	if in.Role != domain.UserRoleBuyer && in.Role != domain.UserRoleSeller {
		v.Add("role", "must be buyer or seller")
	}
	if err := v.Err(); err != nil {
		logger.ExitMethodWithError("AuthService.Register", err)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Infrastructure("failed to hash password", err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = apperrors.Conflict("email is already registered")
		} else {
			err = storeError(err, "user")
		}
		logger.ExitMethodWithError("AuthService.Register", err)
		return nil, err
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	logger.ExitMethod("AuthService.Register", "user_id", user.ID)
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	logger.EnterMethod("AuthService.Login", "email", email)

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.ExitMethodWithError("AuthService.Login", errInvalidCredentials)
			return nil, errInvalidCredentials
		}
		return nil, storeError(err, "user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.ExitMethodWithError("AuthService.Login", errInvalidCredentials, "user_id", user.ID)
		return nil, errInvalidCredentials
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	logger.ExitMethod("AuthService.Login", "user_id", user.ID)
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidRefresh
		}
		return nil, storeError(err, "user")
	}

	// Only the caller that wins the revocation gets a new pair.
	first, err := s.revocations.Revoke(ctx, claims.ID, claims.RemainingTTL())
	if err != nil {
		return nil, apperrors.Infrastructure("failed to rotate refresh token", err)
	}
	if !first {
		return nil, errInvalidRefresh
	}
	return s.issue(user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.validRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if _, err := s.revocations.Revoke(ctx, claims.ID, claims.RemainingTTL()); err != nil {
		return apperrors.Infrastructure("failed to revoke refresh token", err)
	}
	logger.Info("User logged out", "user_id", claims.UserID)
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	user.Name = name
	user.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	user.ProfileImage = strings.TrimSpace(in.ProfileImage)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

func (s *authService) validRefresh(ctx context.Context, token string) (*security.UserClaims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil || claims.Type != security.TokenTypeRefresh {
		return nil, errInvalidRefresh
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Infrastructure("failed to check token revocation", err)
	}
	if revoked {
		return nil, errInvalidRefresh
	}
	return claims, nil
}

func (s *authService) issue(user *domain.User) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Infrastructure("failed to sign access token", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Infrastructure("failed to sign refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

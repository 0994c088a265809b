package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/auth"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

var (
	// ErrInvalidCredentials is returned for any failed signin. The message is
	// identical for unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthenticated is returned when a token cannot be resolved to a live
	// profile. It matches auth.ErrInvalidToken.
	ErrUnauthenticated = fmt.Errorf("authentication required: %w", auth.ErrInvalidToken)
	// ErrProfileNotFound indicates the caller's profile no longer exists.
	ErrProfileNotFound = errors.New("profile not found")
)

// AuthService handles registration, login and token resolution.
type AuthService interface {
	Signup(ctx context.Context, payload dto.SignupRequest) (dto.AuthResponse, error)
	Signin(ctx context.Context, payload dto.SigninRequest) (dto.AuthResponse, error)
	ResolveToken(ctx context.Context, token string) (access.Principal, error)
	Me(ctx context.Context, principal access.Principal) (dto.ProfileResponse, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    *auth.TokenIssuer
	passwords *auth.PasswordHasher
	validator *validation.Validator
	logger    zerolog.Logger
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenIssuer, passwords *auth.PasswordHasher, validator *validation.Validator, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validator: validator,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Signup(ctx context.Context, payload dto.SignupRequest) (dto.AuthResponse, error) {
	payload.Email = normalizeEmail(payload.Email)
	payload.FullName = strings.TrimSpace(payload.FullName)
	payload.Role = strings.ToLower(strings.TrimSpace(payload.Role))

	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	role, err := access.ParseRole(payload.Role)
	if err != nil {
		return dto.AuthResponse{}, validation.FieldError("role", err.Error())
	}

	if _, err := s.users.FindByEmail(ctx, payload.Email); err == nil {
		return dto.AuthResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, err
	}

	hash, err := s.passwords.Hash(payload.Password)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	user := models.User{Email: payload.Email, PasswordHash: hash}
	profile := models.Profile{FullName: payload.FullName, Role: role}
	if err := s.users.CreateWithProfile(ctx, &user, &profile); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AuthResponse{}, ErrEmailTaken
		}
		s.logger.Error().Err(err).Msg("failed to create account")
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", role.String()).Msg("account created")

	return s.issue(profile)
}

func (s *authService) Signin(ctx context.Context, payload dto.SigninRequest) (dto.AuthResponse, error) {
	payload.Email = normalizeEmail(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.FindByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.passwords.CompareDummy(payload.Password)
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := s.passwords.Compare(user.PasswordHash, payload.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	profile, err := s.users.FindProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	return s.issue(profile)
}

// ResolveToken verifies the token and loads the role from the stored profile.
func (s *authService) ResolveToken(ctx context.Context, token string) (access.Principal, error) {
	identity, err := s.tokens.Parse(token)
	if err != nil {
		return access.Principal{}, ErrUnauthenticated
	}

	profile, err := s.users.FindProfile(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.Principal{}, ErrUnauthenticated
		}
		return access.Principal{}, err
	}

	if !profile.Role.Valid() {
		return access.Principal{}, ErrUnauthenticated
	}

	return access.Principal{UserID: profile.ID, Role: profile.Role}, nil
}

func (s *authService) Me(ctx context.Context, principal access.Principal) (dto.ProfileResponse, error) {
	profile, err := s.users.FindProfile(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrProfileNotFound
		}
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile), nil
}

func (s *authService) issue(profile models.Profile) (dto.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(profile.ID, profile.Role)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.NewProfileResponse(profile),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, validation.FieldError(field, field+" must be a valid UUID")
	}
	return id, nil
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// SignupRequest captures the registration payload.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"fullName" validate:"required,min=1,max=255"`
	Role     string `json:"role" validate:"required,oneof=parent therapist school_admin system_admin"`
}

// SigninRequest captures login credentials.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileResponse is the public view of a user profile.
type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Phone     *string   `json:"phone"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse is returned by signup and signin.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      ProfileResponse `json:"user"`
}

// NewProfileResponse maps a profile model.
func NewProfileResponse(profile models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      profile.Role.String(),
		Phone:     profile.Phone,
		AvatarURL: profile.AvatarURL,
		CreatedAt: profile.CreatedAt,
	}
}

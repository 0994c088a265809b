package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
)

// User holds login credentials. The raw password is never stored.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile holds the display fields and role of a user. It shares the user's id.
type Profile struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string      `gorm:"size:255;not null" json:"email"`
	FullName  string      `gorm:"size:255;not null" json:"full_name"`
	Role      access.Role `gorm:"size:32;not null;index" json:"role"`
	Phone     *string     `gorm:"size:64" json:"phone"`
	AvatarURL *string     `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

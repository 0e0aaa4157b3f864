package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider указывает, через какого провайдера пользователь вошёл впервые.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
	ProviderGitHub   AuthProvider = "github"
)

type User struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Email          string       `json:"email" db:"email"`
	DisplayName    string       `json:"display_name" db:"display_name"`
	PasswordHash   string       `json:"-" db:"password_hash"`
	Provider       AuthProvider `json:"provider" db:"provider"`
	GithubUsername *string      `json:"github_username,omitempty" db:"github_username"`
	LinkedinURL    *string      `json:"linkedin_url,omitempty" db:"linkedin_url"`
	Bio            *string      `json:"bio,omitempty" db:"bio"`
	Skills         []string     `json:"skills" db:"skills"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`

	PhotoKey *string `json:"-" db:"photo_key"`
	PhotoURL *string `json:"photo_url,omitempty" db:"-"`

	PasswordResetToken     *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `json:"-" db:"password_reset_expires_at"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected:
		return true
	}
	return false
}

// Application - заявка пользователя на вступление в команду.
type Application struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	ListingID      uuid.UUID         `json:"listing_id" db:"listing_id"`
	ApplicantID    uuid.UUID         `json:"applicant_id" db:"applicant_id"`
	ApplicantName  string            `json:"applicant_name" db:"applicant_name"`
	ApplicantEmail string            `json:"applicant_email" db:"applicant_email"`
	Message        string            `json:"message" db:"message"`
	GithubURL      *string           `json:"github_url,omitempty" db:"github_url"`
	LinkedinURL    *string           `json:"linkedin_url,omitempty" db:"linkedin_url"`
	Status         ApplicationStatus `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	RespondedAt    *time.Time        `json:"responded_at,omitempty" db:"responded_at"`
}

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinTeamSize = 2
	MaxTeamSize = 10

	OnlineLocation = "Online"
)

// Listing - объявление о поиске участников в команду на хакатон.
type Listing struct {
	ID             uuid.UUID `json:"id" db:"id"`
	CreatorID      uuid.UUID `json:"creator_id" db:"creator_id"`
	CreatorName    string    `json:"creator_name" db:"creator_name"`
	CreatorEmail   string    `json:"creator_email" db:"creator_email"`
	HackathonName  string    `json:"hackathon_name" db:"hackathon_name"`
	HackathonDate  time.Time `json:"hackathon_date" db:"hackathon_date"`
	Location       string    `json:"location" db:"location"`
	TechStack      []string  `json:"tech_stack" db:"tech_stack"`
	TeamSize       int       `json:"team_size" db:"team_size"`
	CurrentMembers int       `json:"current_members" db:"current_members"`
	Description    string    `json:"description" db:"description"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (l *Listing) IsOnline() bool {
	return strings.EqualFold(l.Location, "online")
}

func (l *Listing) SpotsLeft() int {
	if left := l.TeamSize - l.CurrentMembers; left > 0 {
		return left
	}
	return 0
}

func (l *Listing) IsFull() bool {
	return l.CurrentMembers >= l.TeamSize
}

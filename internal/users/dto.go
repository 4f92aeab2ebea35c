package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// UserDTO is the transport shape for a user profile. Balance is included
// only on the owner's own profile; PublicProfile strips it.
type UserDTO struct {
	ID                     uuid.UUID        `json:"id"`
	Username               string           `json:"username"`
	DisplayName            string           `json:"display_name"`
	AvatarURL              *string          `json:"avatar_url,omitempty"`
	Balance                *int64           `json:"balance,omitempty"`
	Reputation             float64          `json:"reputation"`
	Status                 enums.UserStatus `json:"status"`
	TotalEarned            int64            `json:"total_earned"`
	ChartsWon              int              `json:"charts_won"`
	ChartsPlayed           int              `json:"charts_played"`
	TotalDonationsReceived int64            `json:"total_donations_received"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username       string
	DisplayName    string
	AvatarURL      *string
	StartingCredit int64
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	balance := u.Balance
	return &UserDTO{
		ID:                     u.ID,
		Username:               u.Username,
		DisplayName:            u.DisplayName,
		AvatarURL:              u.AvatarURL,
		Balance:                &balance,
		Reputation:             u.Reputation,
		Status:                 u.Status,
		TotalEarned:            u.TotalEarned,
		ChartsWon:              u.ChartsWon,
		ChartsPlayed:           u.ChartsPlayed,
		TotalDonationsReceived: u.TotalDonationsReceived,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}
}

// PublicProfile converts a model into the shape other users may see.
func PublicProfile(u *models.User) *UserDTO {
	dto := FromModel(u)
	if dto != nil {
		dto.Balance = nil
	}
	return dto
}

func (c CreateUserDTO) ToModel() *models.User {
	displayName := c.DisplayName
	if displayName == "" {
		displayName = c.Username
	}
	return &models.User{
		Username:    c.Username,
		DisplayName: displayName,
		AvatarURL:   c.AvatarURL,
		Balance:     c.StartingCredit,
		Status:      enums.UserStatusOffline,
	}
}

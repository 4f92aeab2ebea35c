package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// User represents the canonical identity entity. Balance is an internal
// ledger value in integer currency units, never negative.
type User struct {
	ID                     uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username               string           `gorm:"type:text;not null;uniqueIndex"`
	DisplayName            string           `gorm:"column:display_name;type:text;not null"`
	AvatarURL              *string          `gorm:"column:avatar_url;type:text"`
	Balance                int64            `gorm:"column:balance;not null;default:0"`
	Reputation             float64          `gorm:"column:reputation;not null;default:0"`
	Status                 enums.UserStatus `gorm:"column:status;type:text;not null;default:'offline'"`
	TotalEarned            int64            `gorm:"column:total_earned;not null;default:0"`
	ChartsWon              int              `gorm:"column:charts_won;not null;default:0"`
	ChartsPlayed           int              `gorm:"column:charts_played;not null;default:0"`
	TotalDonationsReceived int64            `gorm:"column:total_donations_received;not null;default:0"`
	CreatedAt              time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Chart is a fee-gated skill challenge with a capped participant list.
// PrizePool accumulates as participants join and is display-only; settlement
// computes the payout from EntryFee and ParticipantCount.
type Chart struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID        uuid.UUID         `gorm:"column:creator_id;type:uuid;not null"`
	Title            string            `gorm:"type:text;not null"`
	Description      *string           `gorm:"type:text"`
	EntryFee         int64             `gorm:"column:entry_fee;not null"`
	PrizePool        int64             `gorm:"column:prize_pool;not null;default:0"`
	ParticipantCount int               `gorm:"column:participant_count;not null;default:0"`
	MaxParticipants  int               `gorm:"column:max_participants;not null"`
	MinParticipants  int               `gorm:"column:min_participants;not null;default:2"`
	WinScore         int64             `gorm:"column:win_score;not null;default:100"`
	Status           enums.ChartStatus `gorm:"column:status;type:text;not null;default:'open'"`
	WinnerID         *uuid.UUID        `gorm:"column:winner_id;type:uuid"`
	TotalDonations   int64             `gorm:"column:total_donations;not null;default:0"`
	ScheduledAt      *time.Time        `gorm:"column:scheduled_at"`
	StartedAt        *time.Time        `gorm:"column:started_at"`
	EndedAt          *time.Time        `gorm:"column:ended_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Participants []ChartParticipant `gorm:"foreignKey:ChartID"`
}

// ChartParticipant records a user's paid slot in a chart.
type ChartParticipant struct {
	ID       uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChartID  uuid.UUID               `gorm:"column:chart_id;type:uuid;not null;uniqueIndex:idx_chart_participants_chart_user"`
	UserID   uuid.UUID               `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_chart_participants_chart_user"`
	Status   enums.ParticipantStatus `gorm:"column:status;type:text;not null;default:'joined'"`
	JoinedAt time.Time               `gorm:"column:joined_at;autoCreateTime"`
}

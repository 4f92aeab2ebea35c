package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Donation is a direct balance transfer between users tied to a chart
// context. A completed donation has produced exactly two transactions: a
// debit on the donor and a credit on the recipient, both referencing this id.
type Donation struct {
	ID          uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DonorID     uuid.UUID            `gorm:"column:donor_id;type:uuid;not null"`
	RecipientID uuid.UUID            `gorm:"column:recipient_id;type:uuid;not null"`
	ChartID     *uuid.UUID           `gorm:"column:chart_id;type:uuid"`
	Amount      int64                `gorm:"column:amount;not null"`
	Message     *string              `gorm:"type:text"`
	Status      enums.DonationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Shoutout is a fire-and-forget public endorsement; it carries no status.
type Shoutout struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID    uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	RecipientID uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null"`
	ChartID     *uuid.UUID `gorm:"column:chart_id;type:uuid"`
	Message     string     `gorm:"type:text;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

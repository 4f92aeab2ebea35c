package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Transaction is an immutable, append-only record of a balance-affecting
// event. Amount is signed; Balance snapshots the user's balance immediately
// after the operation, so summing amounts from account creation reconstructs
// the balance at every point.
type Transaction struct {
	ID          uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.TransactionType `gorm:"column:type;type:text;not null"`
	Amount      int64                 `gorm:"column:amount;not null"`
	Balance     int64                 `gorm:"column:balance;not null"`
	ReferenceID *uuid.UUID            `gorm:"column:reference_id;type:uuid"`
	Description string                `gorm:"type:text;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/pkg/enums"
)

// Arena is the live-match runtime counterpart of an in-progress chart.
// Exactly one arena exists per chart once its slots fill; it transitions to
// finished at most once and is retained as history afterwards.
type Arena struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChartID   uuid.UUID         `gorm:"column:chart_id;type:uuid;not null;uniqueIndex"`
	Status    enums.ArenaStatus `gorm:"column:status;type:text;not null;default:'live'"`
	Round     int               `gorm:"column:round;not null;default:0"`
	WinnerID  *uuid.UUID        `gorm:"column:winner_id;type:uuid"`
	Prize     int64             `gorm:"column:prize;not null;default:0"`
	StartedAt time.Time         `gorm:"column:started_at;autoCreateTime"`
	EndedAt   *time.Time        `gorm:"column:ended_at"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Players []ArenaPlayer `gorm:"foreignKey:ArenaID"`
}

// ArenaPlayer is the per-player runtime row, snapshotted from the chart's
// participants when the arena is created and never recomputed afterwards.
type ArenaPlayer struct {
	ID      uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ArenaID uuid.UUID          `gorm:"column:arena_id;type:uuid;not null;uniqueIndex:idx_arena_players_arena_user"`
	UserID  uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_arena_players_arena_user"`
	Score   int64              `gorm:"column:score;not null;default:0"`
	Moves   int                `gorm:"column:moves;not null;default:0"`
	Status  enums.PlayerStatus `gorm:"column:status;type:text;not null;default:'playing'"`
}

// ArenaSpectator records a user watching an arena; joined_at preserves
// insertion order.
type ArenaSpectator struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ArenaID  uuid.UUID `gorm:"column:arena_id;type:uuid;not null;uniqueIndex:idx_arena_spectators_arena_user"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_arena_spectators_arena_user"`
	JoinedAt time.Time `gorm:"column:joined_at;autoCreateTime"`
}

// ArenaChatMessage is an append-only chat log entry.
type ArenaChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ArenaID   uuid.UUID      `gorm:"column:arena_id;type:uuid;not null;index"`
	UserID    *uuid.UUID     `gorm:"column:user_id;type:uuid"`
	Kind      enums.ChatKind `gorm:"column:kind;type:text;not null;default:'user'"`
	Body      string         `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
